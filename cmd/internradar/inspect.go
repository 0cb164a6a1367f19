package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/internradar/internal/config"
	"github.com/amishk599/internradar/internal/inspect"
	"github.com/amishk599/internradar/internal/model"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"audit"},
	Short:   "Inspect a source interactively (TUI)",
	Long:    "Shows the source picker, fetches and extracts the chosen source once, then shows every extracted record next to the ones the filter keeps. Nothing is stored or sent.",
	RunE:    runInspectCmd,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspectCmd(cmd *cobra.Command, args []string) error {
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

	// The TUI owns the terminal; any log output while it runs corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs := buildFetchers(cfg, sources, nil, silentLogger)
	defer fs.Close(silentLogger)

	runInspect(cfg, sources, fs)
	return nil
}

func runInspect(cfg *config.Config, sources []model.Source, fs *fetchers) {
	if len(sources) == 0 {
		fmt.Println("No sources configured.")
		return
	}

	extractor := newExtractor(cfg)
	jobFilter := newFilter(cfg)
	// Covers every retry attempt plus the rate limiter's gap.
	budget := cfg.Fetch.Timeout*2*time.Duration(cfg.Fetch.MaxAttempts) + cfg.RateLimit.MaxDelay

	for {
		choice, err := inspect.RunSourcePicker(sources)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return
		}
		if choice < 0 {
			return
		}
		src := sources[choice]

		report, err := inspect.RunLoader(src.Name, budget, func(ctx context.Context) (inspect.Report, error) {
			return inspect.Build(ctx, src, fs.For(src), extractor, jobFilter)
		})
		if err != nil {
			fmt.Printf("Error inspecting %s: %v\n", src.Name, err)
			continue
		}

		wantQuit, err := inspect.RunInspectTUI(report)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return
		}
	}
}
