package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
check_interval_minutes: 15
keywords:
  - software
  - data
max_retries: 4
min_delay: 1s
max_delay: 3s
database_url: postgres://intern_user@localhost/internships
notification:
  type: slack
  webhook_url: https://hooks.slack.com/services/T000/B000/XXX
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CheckInterval != 15*time.Minute {
		t.Errorf("CheckInterval = %v, want 15m", cfg.CheckInterval)
	}
	if len(cfg.Filters.Keywords) != 2 || cfg.Filters.Keywords[0] != "software" {
		t.Errorf("Keywords = %v", cfg.Filters.Keywords)
	}
	if cfg.Fetch.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", cfg.Fetch.MaxAttempts)
	}
	if cfg.RateLimit.MinDelay != time.Second || cfg.RateLimit.MaxDelay != 3*time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.DatabaseURL != "postgres://intern_user@localhost/internships" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Notification.Type != "slack" {
		t.Errorf("Notification.Type = %q", cfg.Notification.Type)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "keywords: [software]\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CheckInterval != 30*time.Minute {
		t.Errorf("CheckInterval = %v, want 30m", cfg.CheckInterval)
	}
	if cfg.Fetch.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Fetch.MaxAttempts)
	}
	if len(cfg.Filters.InternshipTerms) != len(DefaultInternshipTerms) {
		t.Errorf("InternshipTerms = %v", cfg.Filters.InternshipTerms)
	}
	if cfg.Notification.Type != "log" {
		t.Errorf("Notification.Type = %q, want log", cfg.Notification.Type)
	}
	if cfg.SourcesFile != "companies.json" || cfg.DatabaseURL != "internradar.db" {
		t.Errorf("SourcesFile = %q, DatabaseURL = %q", cfg.SourcesFile, cfg.DatabaseURL)
	}
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless should default to true")
	}
	if cfg.RateLimit.PerHost {
		t.Error("PerHost should default to false for sequential fetching")
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("INTERNRADAR_TEST_DSN", "postgres://u:secret@db/internships")
	path := writeFile(t, "config.yaml", "keywords: [software]\ndatabase_url: ${INTERNRADAR_TEST_DSN}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://u:secret@db/internships" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestLoad_ConcurrencyForcesPerHost(t *testing.T) {
	path := writeFile(t, "config.yaml", "keywords: [software]\nfetch:\n  concurrency: 4\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.RateLimit.PerHost {
		t.Error("PerHost should be forced on when concurrency > 1")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "check_interval_minutes: [broken")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative interval", "check_interval_minutes: -5\n"},
		{"max below min delay", "min_delay: 5s\nmax_delay: 1s\n"},
		{"negative retries", "max_retries: -1\n"},
		{"bad duration", "min_delay: soon\n"},
		{"bad schedule", "schedule: \"not a cron\"\n"},
		{"slack without webhook", "notification:\n  type: slack\n"},
		{"slack with foreign webhook", "notification:\n  type: slack\n  webhook_url: https://example.com/hook\n"},
		{"email without recipients", "notification:\n  type: email\n  smtp:\n    host: smtp.example.com\n    from: a@example.com\n"},
		{"unknown notifier", "notification:\n  type: pager\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", "keywords: [software]\n"+tt.content)
			if _, err := Load(path); err == nil {
				t.Fatal("Load: expected validation error")
			}
		})
	}
}

func TestLoad_RequiresKeywords(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing", "check_interval_minutes: 5\n"},
		{"empty list", "keywords: []\n"},
		{"blank terms only", "keywords: [\"  \", \"\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load: expected error without keywords")
			}
			if !strings.Contains(err.Error(), "keywords") {
				t.Errorf("error %q should name keywords", err)
			}
		})
	}
}
