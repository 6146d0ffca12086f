package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chatty-relay/moderation"
	"chatty-relay/observability"
	"chatty-relay/runtime"
	"chatty-relay/runtime/workers"
	"chatty-relay/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer executes before the
// process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	replacement, err := characterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Backlog storage (BadgerDB, in-memory: history lives exactly as
	// long as the process)
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("backlog storage opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing backlog storage...")
		_ = db.Close()
	}()

	// 3. Relay core
	monitor := observability.NewMonitoringManager()
	registry := runtime.NewRegistry()
	backlog := runtime.NewBacklog(db, log)
	router := runtime.NewRouter(log, registry, backlog, monitor, config.SinkTimeout)
	moderator, err := moderation.NewModerator(config.CensoredWords, replacement)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}
	orchestrator := runtime.NewOrchestrator(log, registry, backlog, router, moderator, monitor, config.SinkTimeout)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewMonitorWorker(log, monitor, config.MonitorInterval))
	go sup.Run(ctx)

	// 6. HTTP + WebSocket server, blocking until shutdown
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv := server.NewServer(log, orchestrator, config.ConnectionBufferSize)
	if err := srv.ListenAndServe(ctx, address); err != nil {
		return fmt.Errorf("relay server error: %w", err)
	}

	// 7. Final cleanup
	sup.Stop()
	log.Info("Program stopped cleanly")
	return nil
}
