package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/internradar/internal/config"
	"github.com/amishk599/internradar/internal/extract"
	"github.com/amishk599/internradar/internal/fetcher"
	"github.com/amishk599/internradar/internal/filter"
	"github.com/amishk599/internradar/internal/metrics"
	"github.com/amishk599/internradar/internal/model"
	"github.com/amishk599/internradar/internal/notifier"
	"github.com/amishk599/internradar/internal/poller"
	"github.com/amishk599/internradar/internal/ratelimit"
	"github.com/amishk599/internradar/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "internradar",
	Short: "Internship radar: new postings, reported once",
	Long:  "internradar polls career pages and job boards, extracts internship postings and sends a digest of the ones it has not reported before.",
	// Default to `start` so that `internradar` with no args runs the daemon.
	RunE:         runStart,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: INTERNRADAR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > INTERNRADAR_CONFIG env var > "./config.yaml".
// A .env file in the working directory is loaded first so ${VAR} references
// in the config can be satisfied without exporting secrets.
func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		if env := os.Getenv("INTERNRADAR_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	case "email":
		logger.Info("using email notifier", "host", cfg.Notification.SMTP.Host, "recipients", len(cfg.Notification.SMTP.To))
		return notifier.NewEmailNotifier(cfg.Notification.SMTP, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

// loadSources reads the sources file and logs every entry that was skipped.
func loadSources(cfg *config.Config, logger *slog.Logger) ([]model.Source, error) {
	sources, skipped, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		logger.Warn("skipping source", "source", s.Name, "reason", s.Reason)
	}
	return sources, nil
}

// fetchers holds the fetch strategies shared by every source. Both go through
// the same rate limiter and retry policy. The browser is only created when at
// least one source asks for rendering, and is not launched until first use.
type fetchers struct {
	http    model.Fetcher
	browser model.Fetcher
	chrome  *fetcher.BrowserFetcher
}

func buildFetchers(cfg *config.Config, sources []model.Source, m *metrics.Metrics, logger *slog.Logger) *fetchers {
	limiter := ratelimit.NewHostRateLimiter(cfg.RateLimit.MinDelay, cfg.RateLimit.MaxDelay, cfg.RateLimit.PerHost)
	logger.Info("rate limiter configured",
		"min_delay", cfg.RateLimit.MinDelay.String(),
		"max_delay", cfg.RateLimit.MaxDelay.String(),
		"per_host", cfg.RateLimit.PerHost,
	)

	wrap := func(base model.Fetcher) model.Fetcher {
		r := retry.NewRetryFetcher(
			ratelimit.NewRateLimitedFetcher(base, limiter),
			cfg.Fetch.MaxAttempts, cfg.Fetch.BaseBackoff, cfg.Fetch.MaxBackoff, logger,
		)
		if m != nil {
			r = r.WithObserver(m)
		}
		return r
	}

	// The per-attempt timeout is applied by the fetcher.
	client := &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Fetch.Timeout,
		MaxIdleConnsPerHost:   2,
	}}
	fs := &fetchers{
		http: wrap(fetcher.NewHTTPFetcher(client, cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxBodyBytes)),
	}

	for _, src := range sources {
		if src.Render == model.RenderBrowser {
			fs.chrome = fetcher.NewBrowserFetcher(fetcher.BrowserOptions{
				Bin:        cfg.Browser.Bin,
				ControlURL: cfg.Browser.ControlURL,
				Headless:   cfg.Browser.Headless,
				Timeout:    cfg.Fetch.Timeout,
				Settle:     cfg.Browser.Settle,
			}, logger)
			fs.browser = wrap(fs.chrome)
			break
		}
	}
	return fs
}

// For returns the fetch strategy src is configured for.
func (f *fetchers) For(src model.Source) model.Fetcher {
	if src.Render == model.RenderBrowser && f.browser != nil {
		return f.browser
	}
	return f.http
}

func (f *fetchers) Close(logger *slog.Logger) {
	if f.chrome == nil {
		return
	}
	if err := f.chrome.Close(); err != nil {
		logger.Warn("closing browser failed", "error", err)
	}
}

func newExtractor(cfg *config.Config) *extract.Extractor {
	return extract.New(cfg.Extract.MaxDescription, nil)
}

func newFilter(cfg *config.Config) *filter.RelevanceFilter {
	return filter.NewRelevanceFilter(cfg.Filters.InternshipTerms, cfg.Filters.Keywords, cfg.Filters.ExcludeKeywords)
}

func buildPollers(cfg *config.Config, sources []model.Source, fs *fetchers, jobStore model.JobStore, m *metrics.Metrics, logger *slog.Logger) []*poller.SourcePoller {
	jobFilter := newFilter(cfg)
	extractor := newExtractor(cfg)

	var pollers []*poller.SourcePoller
	for _, src := range sources {
		p := poller.NewSourcePoller(src, fs.For(src), extractor, jobFilter, jobStore, m, logger)
		pollers = append(pollers, p)
		logger.Info("registered source", "name", src.Name, "render", string(src.Render))
	}
	return pollers
}
