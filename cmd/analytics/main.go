// Command analytics runs one collection pass: fetch metrics for every
// pending job whose due time has elapsed, advance job state, and notify.
//
// Exit codes: 0 = run completed (per-job failures included), 1 = fatal
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

	st, err := durable.Load()
	if err != nil {
		logger.Printf("failed to load state: %v", err)
		os.Exit(1)
	}

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

	runner := &service.AnalyticsRunner{
		Extractor: extractor,
		Notifier:  slack.NewNotifier(cfg.SlackWebhookURL),
		Logger:    logger,
	}
	summary := runner.Run(ctx, st)
	logger.Printf("analytics run: %d due, %d completed, %d failed, %d retrying",
		summary.Due, summary.Completed, summary.Failed, summary.Retrying)

	if err := durable.Save(st); err != nil {
		logger.Printf("failed to save state: %v", err)
		os.Exit(1)
	}
}

func buildExtractor(cfg *config.Config) (ports.Extractor, error) {
	if cfg.Extractor == "apify" {
		return apify.NewClient(cfg.ApifyToken)
	}
	return ytdlp.NewClient(), nil
}
