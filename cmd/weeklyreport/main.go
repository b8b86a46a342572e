// Command weeklyreport sends the weekly operational summary to the
// notification channel: monitored accounts plus registry and job counts.
//
// Exit codes: 0 = report sent, 1 = fatal error.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"

	"tokwatch/internal/adapters/slack"
	"tokwatch/internal/config"
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

	runner := &service.WeeklyReportRunner{
		Accounts: cfg.Accounts,
		Notifier: slack.NewNotifier(cfg.SlackWebhookURL),
		Logger:   logger,
	}
	if err := runner.Run(context.Background(), st); err != nil {
		logger.Printf("failed to send weekly report: %v", err)
		os.Exit(1)
	}
}
