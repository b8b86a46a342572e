// Package config loads the monitored-account document and environment
// secrets. Accounts live in a YAML file so the list can be reviewed in
// version control; secrets and deployment knobs come from the environment
// (a .env file is honored by the entry points).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAccountsFile  = "config/accounts.yaml"
	DefaultStateDSN      = "data/state.json"
	DefaultEphemeralFile = "data/ephemeral.json"

	defaultAnalyticsDelayHours = 24
	defaultMaxAnalyticsRetries = 3
	defaultFailureThreshold    = 5
	defaultMaxCompletedHistory = 200
)

// Config is the resolved runtime configuration shared by all entry points.
type Config struct {
	Accounts            []string
	SlackWebhookURL     string
	StateDSN            string
	EphemeralFile       string
	Extractor           string // "ytdlp" or "apify"
	ApifyToken          string
	AnalyticsDelayHours int
	MaxAnalyticsRetries int
	FailureThreshold    int
	MaxCompletedHistory int
}

type accountsDoc struct {
	Accounts            []string `yaml:"accounts"`
	AnalyticsDelayHours int      `yaml:"analytics_delay_hours"`
	MaxAnalyticsRetries int      `yaml:"max_analytics_retries"`
	FailureThreshold    int      `yaml:"failure_threshold"`
	MaxCompletedHistory int      `yaml:"max_completed_history"`
}

// Load reads the accounts document at path and resolves environment
// variables. It validates everything needed for a run to start.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultAccountsFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file %s: %w", path, err)
	}
	var doc accountsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse accounts file %s: %w", path, err)
	}
	if len(doc.Accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured in %s", path)
	}
	for _, account := range doc.Accounts {
		if !strings.HasPrefix(account, "@") {
			return nil, fmt.Errorf("account %q must start with '@' (e.g. \"@username\")", account)
		}
	}

	webhook := os.Getenv("SLACK_WEBHOOK_URL")
	if webhook == "" {
		return nil, fmt.Errorf("SLACK_WEBHOOK_URL environment variable is not set")
	}

	extractor := strings.ToLower(envString("EXTRACTOR", "ytdlp"))
	switch extractor {
	case "ytdlp", "apify":
	default:
		return nil, fmt.Errorf("unsupported EXTRACTOR %q (want ytdlp or apify)", extractor)
	}
	apifyToken := os.Getenv("APIFY_API_TOKEN")
	if extractor == "apify" && apifyToken == "" {
		return nil, fmt.Errorf("APIFY_API_TOKEN environment variable is not set")
	}

	cfg := &Config{
		Accounts:            doc.Accounts,
		SlackWebhookURL:     webhook,
		StateDSN:            envString("STATE_DSN", DefaultStateDSN),
		EphemeralFile:       envString("EPHEMERAL_FILE", DefaultEphemeralFile),
		Extractor:           extractor,
		ApifyToken:          apifyToken,
		AnalyticsDelayHours: intOrDefault(doc.AnalyticsDelayHours, defaultAnalyticsDelayHours),
		MaxAnalyticsRetries: intOrDefault(doc.MaxAnalyticsRetries, defaultMaxAnalyticsRetries),
		FailureThreshold:    intOrDefault(doc.FailureThreshold, defaultFailureThreshold),
		MaxCompletedHistory: intOrDefault(doc.MaxCompletedHistory, defaultMaxCompletedHistory),
	}
	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
