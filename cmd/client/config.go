package main

import "time"

type Config struct {
	HubURL       string        `env:"CHAT_HUB_URL,default=ws://localhost:8080/chathub"`
	Username     string        `env:"CHAT_USERNAME"`
	LogLevel     string        `env:"LOG_LEVEL,default=warn"`
	RetryDelay   time.Duration `env:"RETRY_DELAY,default=2s"`
	PollInterval time.Duration `env:"POLL_INTERVAL,default=5s"`
}
