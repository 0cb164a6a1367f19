package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the internradar poller.
// It is built once by Load and never mutated afterwards.
type Config struct {
	CheckInterval time.Duration
	Schedule      string // optional cron expression, overrides CheckInterval
	SourcesFile   string
	DatabaseURL   string
	Filters       FilterConfig
	Fetch         FetchConfig
	RateLimit     RateLimitConfig
	Browser       BrowserConfig
	Extract       ExtractConfig
	Notification  NotificationConfig
	Metrics       MetricsConfig
}

// FilterConfig holds the relevance filter term sets.
type FilterConfig struct {
	Keywords        []string
	InternshipTerms []string
	ExcludeKeywords []string
}

// FetchConfig controls timeouts and retry behaviour of the fetch layer.
type FetchConfig struct {
	Timeout      time.Duration // per-attempt timeout
	MaxAttempts  int           // total attempts including the first
	BaseBackoff  time.Duration // delay before the second attempt, doubled afterwards
	MaxBackoff   time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Concurrency  int // sources fetched in parallel
}

// RateLimitConfig bounds the randomized gap between consecutive fetches.
type RateLimitConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	PerHost  bool // key the gap by upstream host instead of globally
}

// BrowserConfig controls the rendering strategy.
type BrowserConfig struct {
	Bin        string        // chromium binary; empty lets the launcher pick one
	ControlURL string        // connect to a running browser instead of launching
	Settle     time.Duration // wait after navigation before reading the DOM
	Headless   bool
}

// ExtractConfig controls the extractor's resource bounds.
type ExtractConfig struct {
	MaxDescription int // display columns
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string     `yaml:"type"`        // "log", "slack" or "email"
	WebhookURL string     `yaml:"webhook_url"` // required if type is "slack"
	SMTP       SMTPConfig `yaml:"smtp"`        // required if type is "email"
}

// SMTPConfig describes the mail relay for email digests.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Subject  string   `yaml:"subject"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // empty disables the endpoint
}

const (
	defaultCheckInterval  = 30
	defaultMaxRetries     = 3
	defaultSourcesFile    = "companies.json"
	defaultDatabaseURL    = "internradar.db"
	defaultUserAgent      = "Mozilla/5.0 (compatible; internradar/1.0)"
	defaultMaxBodyBytes   = 5 << 20
	defaultMaxDescription = 500
	defaultEmailSubject   = "New Internship Alert"
	defaultSMTPPort       = 465
	slackWebhookURLPrefix = "https://hooks.slack.com/"
)

// DefaultInternshipTerms are the stage-one terms used when internship_terms is unset.
var DefaultInternshipTerms = []string{"intern", "internship", "co-op", "student"}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	CheckIntervalMinutes int                `yaml:"check_interval_minutes"`
	Schedule             string             `yaml:"schedule"`
	SourcesFile          string             `yaml:"sources_file"`
	DatabaseURL          string             `yaml:"database_url"`
	Keywords             []string           `yaml:"keywords"`
	InternshipTerms      []string           `yaml:"internship_terms"`
	ExcludeKeywords      []string           `yaml:"exclude_keywords"`
	MaxRetries           int                `yaml:"max_retries"`
	MinDelay             string             `yaml:"min_delay"`
	MaxDelay             string             `yaml:"max_delay"`
	Fetch                rawFetchConfig     `yaml:"fetch"`
	Browser              rawBrowserConfig   `yaml:"browser"`
	Extract              rawExtractConfig   `yaml:"extract"`
	Notification         NotificationConfig `yaml:"notification"`
	Metrics              MetricsConfig      `yaml:"metrics"`
}

type rawFetchConfig struct {
	Timeout      string `yaml:"timeout"`
	BaseBackoff  string `yaml:"base_backoff"`
	MaxBackoff   string `yaml:"max_backoff"`
	UserAgent    string `yaml:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	Concurrency  int    `yaml:"concurrency"`
	PerHost      bool   `yaml:"per_host"`
}

type rawBrowserConfig struct {
	Bin        string `yaml:"bin"`
	ControlURL string `yaml:"control_url"`
	Settle     string `yaml:"settle"`
	Headless   *bool  `yaml:"headless"`
}

type rawExtractConfig struct {
	MaxDescription int `yaml:"max_description"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if raw.CheckIntervalMinutes < 0 {
		return nil, fmt.Errorf("check_interval_minutes must be positive, got %d", raw.CheckIntervalMinutes)
	}
	interval := defaultCheckInterval
	if raw.CheckIntervalMinutes > 0 {
		interval = raw.CheckIntervalMinutes
	}

	minDelay, err := parseDuration("min_delay", raw.MinDelay, 2*time.Second)
	if err != nil {
		return nil, err
	}
	maxDelay, err := parseDuration("max_delay", raw.MaxDelay, 5*time.Second)
	if err != nil {
		return nil, err
	}
	timeout, err := parseDuration("fetch.timeout", raw.Fetch.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	baseBackoff, err := parseDuration("fetch.base_backoff", raw.Fetch.BaseBackoff, 2*time.Second)
	if err != nil {
		return nil, err
	}
	maxBackoff, err := parseDuration("fetch.max_backoff", raw.Fetch.MaxBackoff, time.Minute)
	if err != nil {
		return nil, err
	}
	settle, err := parseDuration("browser.settle", raw.Browser.Settle, 3*time.Second)
	if err != nil {
		return nil, err
	}

	maxAttempts := raw.MaxRetries
	if maxAttempts == 0 {
		maxAttempts = defaultMaxRetries
	}

	concurrency := raw.Fetch.Concurrency
	if concurrency == 0 {
		concurrency = 1
	}

	headless := true
	if raw.Browser.Headless != nil {
		headless = *raw.Browser.Headless
	}

	internshipTerms := raw.InternshipTerms
	if len(internshipTerms) == 0 {
		internshipTerms = DefaultInternshipTerms
	}

	notification := raw.Notification
	if notification.Type == "" {
		notification.Type = "log"
	}
	if notification.SMTP.Port == 0 {
		notification.SMTP.Port = defaultSMTPPort
	}
	if notification.SMTP.Subject == "" {
		notification.SMTP.Subject = defaultEmailSubject
	}

	cfg := &Config{
		CheckInterval: time.Duration(interval) * time.Minute,
		Schedule:      strings.TrimSpace(raw.Schedule),
		SourcesFile:   orDefault(raw.SourcesFile, defaultSourcesFile),
		DatabaseURL:   orDefault(raw.DatabaseURL, defaultDatabaseURL),
		Filters: FilterConfig{
			Keywords:        raw.Keywords,
			InternshipTerms: internshipTerms,
			ExcludeKeywords: raw.ExcludeKeywords,
		},
		Fetch: FetchConfig{
			Timeout:      timeout,
			MaxAttempts:  maxAttempts,
			BaseBackoff:  baseBackoff,
			MaxBackoff:   maxBackoff,
			UserAgent:    orDefault(raw.Fetch.UserAgent, defaultUserAgent),
			MaxBodyBytes: raw.Fetch.MaxBodyBytes,
			Concurrency:  concurrency,
		},
		RateLimit: RateLimitConfig{
			MinDelay: minDelay,
			MaxDelay: maxDelay,
			// Parallel fetches would bypass a single global gap, so the
			// gap is enforced per upstream host instead.
			PerHost: raw.Fetch.PerHost || concurrency > 1,
		},
		Browser: BrowserConfig{
			Bin:        raw.Browser.Bin,
			ControlURL: raw.Browser.ControlURL,
			Settle:     settle,
			Headless:   headless,
		},
		Extract: ExtractConfig{
			MaxDescription: raw.Extract.MaxDescription,
		},
		Notification: notification,
		Metrics:      raw.Metrics,
	}
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Extract.MaxDescription == 0 {
		cfg.Extract.MaxDescription = defaultMaxDescription
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.CheckInterval <= 0 {
		return fmt.Errorf("check_interval_minutes must be positive, got %v", cfg.CheckInterval)
	}
	if !hasTerm(cfg.Filters.Keywords) {
		return fmt.Errorf("keywords must contain at least one non-blank term")
	}
	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", cfg.Fetch.MaxAttempts)
	}
	if cfg.RateLimit.MinDelay < 0 {
		return fmt.Errorf("min_delay must not be negative, got %v", cfg.RateLimit.MinDelay)
	}
	if cfg.RateLimit.MaxDelay < cfg.RateLimit.MinDelay {
		return fmt.Errorf("max_delay (%v) must be >= min_delay (%v)", cfg.RateLimit.MaxDelay, cfg.RateLimit.MinDelay)
	}
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.BaseBackoff <= 0 || cfg.Fetch.MaxBackoff < cfg.Fetch.BaseBackoff {
		return fmt.Errorf("fetch.base_backoff must be positive and <= fetch.max_backoff")
	}
	if cfg.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1, got %d", cfg.Fetch.Concurrency)
	}
	if cfg.Extract.MaxDescription < 0 {
		return fmt.Errorf("extract.max_description must not be negative")
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookURLPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookURLPrefix)
		}
	case "email":
		smtp := cfg.Notification.SMTP
		if smtp.Host == "" || smtp.From == "" || len(smtp.To) == 0 {
			return fmt.Errorf("notification.smtp host, from and to are required when type is \"email\"")
		}
	default:
		return fmt.Errorf("unknown notification.type %q", cfg.Notification.Type)
	}

	return nil
}

func hasTerm(terms []string) bool {
	for _, t := range terms {
		if strings.TrimSpace(t) != "" {
			return true
		}
	}
	return false
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
