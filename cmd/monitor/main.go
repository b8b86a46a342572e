// Command monitor runs one detection pass: check every configured account
// for new posts, register them, schedule 24h analytics jobs, and notify.
//
// Exit codes: 0 = run completed (per-account failures included), 1 = fatal
// (configuration, corrupt state, or state persistence failure).
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tokwatch/internal/adapters/apify"
	"tokwatch/internal/adapters/slack"
	"tokwatch/internal/adapters/ytdlp"
	"tokwatch/internal/config"
	"tokwatch/internal/core/ports"
	"tokwatch/internal/service"
	"tokwatch/internal/state"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// Environment variables may be set directly.
		log.Println("No .env file found")
	}

	configPath := flag.String("config", config.DefaultAccountsFile, "Path to the accounts YAML file")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Printf("configuration error: %v", err)
		os.Exit(1)
	}

	backend, err := state.BuildSnapshotBackend(cfg.StateDSN)
	if err != nil {
		logger.Printf("state backend error: %v", err)
		os.Exit(1)
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}
	durable := state.NewDurableStore(backend, cfg.MaxCompletedHistory)
	ephStore := state.NewEphemeralStore(cfg.EphemeralFile)

	st, err := durable.Load()
	if err != nil {
		logger.Printf("failed to load state: %v", err)
		os.Exit(1)
	}
	eph := ephStore.Load()

	extractor, err := buildExtractor(cfg)
	if err != nil {
		logger.Printf("extractor error: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("received interrupt signal, cancelling...")
		cancel()
	}()

	runner := &service.DetectionRunner{
		Accounts:         cfg.Accounts,
		Extractor:        extractor,
		Notifier:         slack.NewNotifier(cfg.SlackWebhookURL),
		Logger:           logger,
		AnalyticsDelay:   time.Duration(cfg.AnalyticsDelayHours) * time.Hour,
		MaxAttempts:      cfg.MaxAnalyticsRetries,
		FailureThreshold: cfg.FailureThreshold,
	}
	summary := runner.Run(ctx, st, eph)
	logger.Printf("detection run: %d accounts checked, %d new posts, %d failures",
		summary.AccountsChecked, summary.NewItems, summary.FailedAccounts)

	if err := durable.Save(st); err != nil {
		logger.Printf("failed to save state: %v", err)
		os.Exit(1)
	}
	if err := ephStore.Save(eph); err != nil {
		logger.Printf("warning: failed to save ephemeral state: %v", err)
	}
}

func buildExtractor(cfg *config.Config) (ports.Extractor, error) {
	if cfg.Extractor == "apify" {
		return apify.NewClient(cfg.ApifyToken)
	}
	return ytdlp.NewClient(), nil
}
