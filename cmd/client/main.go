package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chatty-relay/client"
	"chatty-relay/domain"
	"chatty-relay/projection"
	"chatty-relay/runtime/workers"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the terminal client lifecycle: configuration, connection,
// the interactive prompt, and graceful shutdown.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	username := config.Username
	if username == "" {
		fmt.Print("Username: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return exitConfig, err
		}
		username = strings.TrimSpace(line)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Build the client. The terminal is always "observed": local
	// notifications stay off, messages render inline instead.
	timeline := projection.NewTimeline(nil, projection.DefaultRecencyWindow)
	c := client.NewClient(log, config.HubURL, config.RetryDelay, timeline)
	c.Subscribe(client.Events{
		OnMessageReceived:    renderMessage,
		OnUsernameRegistered: func(name string) { color.Green.Printf("-- %s registered --\n", name) },
		OnUserDisconnected: func(user domain.User) {
			color.Gray.Printf("-- %s disconnected --\n", user.Username)
		},
		OnErrorMessage: func(text string) { color.Red.Printf("!! %s\n", text) },
		OnReconnecting: func(error) { color.Yellow.Println("-- reconnecting --") },
		OnReconnected:  func() { color.Green.Println("-- back online --") },
	})

	// 4. Background workers: outbound serializer + liveness poller.
	healthURL, err := client.HealthURL(config.HubURL)
	if err != nil {
		return exitConfig, fmt.Errorf("derive healthcheck url: %w", err)
	}
	sup := workers.NewSupervisor(log, time.Second)
	sup.Add(c.Sender())
	sup.Add(client.NewPoller(log, healthURL, config.PollInterval, func(online bool) {
		if online {
			color.Green.Println("-- relay reachable --")
		} else {
			color.Red.Println("-- relay unreachable --")
		}
	}))
	go sup.Run(ctx)

	// 5. Connect and register. Start fails loudly; the user retries by
	// relaunching rather than waiting on a silent loop.
	if err := c.Start(username); err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.HubURL, err)
	}
	defer c.Stop()

	color.Cyan.Printf(">>> Connected to %s as %q. '/to <user> <text>' sends a DM, Ctrl+C quits.\n",
		config.HubURL, username)

	// 6. Interactive prompt loop.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			color.Cyan.Println("Stopping client...")
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			content, recipient := parseLine(line)
			if content != "" {
				c.Compose(content, recipient)
			}
		}
	}
}

// parseLine splits "/to bob hello" into its recipient and content;
// anything else broadcasts.
func parseLine(line string) (content, recipient string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/to ") {
		return line, domain.RecipientAll
	}
	rest := strings.TrimPrefix(line, "/to ")
	parts := strings.SplitN(rest, " ", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[1]), parts[0]
}

func renderMessage(m domain.Message) {
	stamp := m.CreatedAt.Local().Format(time.TimeOnly)
	switch {
	case m.Kind == domain.KindSystem:
		color.Gray.Printf("[%s] * %s\n", stamp, m.Content)
	case m.Recipient != nil && m.Recipient.Username != domain.RecipientAll:
		color.Magenta.Printf("[%s] %s (dm): %s\n", stamp, m.Sender.Username, m.Content)
	default:
		fmt.Printf("[%s] %s: %s\n", stamp, m.Sender.Username, m.Content)
	}
}
