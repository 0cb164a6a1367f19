package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/internradar/internal/metrics"
	"github.com/amishk599/internradar/internal/scheduler"
	"github.com/amishk599/internradar/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the polling daemon",
	Long:  "Start the scheduler daemon; runs one cycle immediately and blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sources, err := loadSources(cfg, logger)
	if err != nil {
		logger.Error("failed to load sources", "file", cfg.SourcesFile, "error", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		logger.Error("no sources to poll", "file", cfg.SourcesFile)
		return errNoSources
	}

	logger.Info("config loaded",
		"interval", cfg.CheckInterval.String(),
		"schedule", cfg.Schedule,
		"sources", len(sources),
		"keywords", len(cfg.Filters.Keywords),
		"internship_terms", len(cfg.Filters.InternshipTerms),
		"concurrency", cfg.Fetch.Concurrency,
	)

	schedule, err := scheduler.NewSchedule(cfg.Schedule, cfg.CheckInterval)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// From here on errors are returned so every deferred Close runs.
	jobStore, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return fmt.Errorf("open store: %w", err)
	}
	defer jobStore.Close()

	m := metrics.New()
	if cfg.Metrics.ListenAddr != "" {
		srv := serveMetrics(cfg.Metrics.ListenAddr, m, func(err error) {
			logger.Error("metrics server failed", "error", err)
		})
		defer shutdownMetrics(srv)
		logger.Info("serving metrics", "addr", cfg.Metrics.ListenAddr)
	}

	fs := buildFetchers(cfg, sources, m, logger)
	defer fs.Close(logger)

	n := setupNotifier(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	pollers := buildPollers(cfg, sources, fs, jobStore, m, logger)

	sched := scheduler.NewScheduler(pollers, schedule, cfg.Fetch.Concurrency, jobStore, n, m, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		return fmt.Errorf("scheduler: %w", err)
	}

	logger.Info("goodbye")
	return nil
}

var errNoSources = errors.New("no sources to poll")

func serveMetrics(addr string, m *metrics.Metrics, onErr func(error)) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			onErr(err)
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
