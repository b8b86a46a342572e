package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAccounts(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("STATE_DSN", "")
	t.Setenv("EPHEMERAL_FILE", "")
	t.Setenv("EXTRACTOR", "")
	path := writeAccounts(t, "accounts:\n  - \"@alpha\"\n  - \"@beta\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Accounts) != 2 || cfg.Accounts[0] != "@alpha" {
		t.Fatalf("unexpected accounts %v", cfg.Accounts)
	}
	if cfg.StateDSN != DefaultStateDSN || cfg.EphemeralFile != DefaultEphemeralFile {
		t.Fatalf("expected default paths, got %q %q", cfg.StateDSN, cfg.EphemeralFile)
	}
	if cfg.Extractor != "ytdlp" {
		t.Fatalf("expected default extractor ytdlp, got %q", cfg.Extractor)
	}
	if cfg.AnalyticsDelayHours != 24 || cfg.MaxAnalyticsRetries != 3 {
		t.Fatalf("unexpected scheduling defaults: %+v", cfg)
	}
	if cfg.FailureThreshold != 5 || cfg.MaxCompletedHistory != 200 {
		t.Fatalf("unexpected alerting defaults: %+v", cfg)
	}
}

func TestLoadHonorsDocumentOverrides(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	t.Setenv("EXTRACTOR", "")
	path := writeAccounts(t, strings.Join([]string{
		"accounts:",
		"  - \"@alpha\"",
		"analytics_delay_hours: 48",
		"max_analytics_retries: 5",
		"failure_threshold: 2",
		"max_completed_history: 10",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.AnalyticsDelayHours != 48 || cfg.MaxAnalyticsRetries != 5 {
		t.Fatalf("document overrides ignored: %+v", cfg)
	}
	if cfg.FailureThreshold != 2 || cfg.MaxCompletedHistory != 10 {
		t.Fatalf("document overrides ignored: %+v", cfg)
	}
}

func TestLoadRejectsAccountWithoutAtPrefix(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	path := writeAccounts(t, "accounts:\n  - alpha\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for account without @ prefix")
	}
}

func TestLoadRejectsEmptyAccountList(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	path := writeAccounts(t, "accounts: []\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty account list")
	}
}

func TestLoadRequiresWebhookURL(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "")
	path := writeAccounts(t, "accounts:\n  - \"@alpha\"\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "SLACK_WEBHOOK_URL") {
		t.Fatalf("expected webhook error, got %v", err)
	}
}

func TestLoadValidatesExtractor(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	path := writeAccounts(t, "accounts:\n  - \"@alpha\"\n")

	t.Setenv("EXTRACTOR", "curl")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown extractor")
	}

	t.Setenv("EXTRACTOR", "apify")
	t.Setenv("APIFY_API_TOKEN", "")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "APIFY_API_TOKEN") {
		t.Fatalf("expected token error, got %v", err)
	}

	t.Setenv("APIFY_API_TOKEN", "tok")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("apify with token must load: %v", err)
	}
	if cfg.Extractor != "apify" || cfg.ApifyToken != "tok" {
		t.Fatalf("unexpected extractor config: %+v", cfg)
	}
}

func TestLoadReportsMissingFile(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/X")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing accounts file")
	}
}
