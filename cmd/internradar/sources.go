package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/internradar/internal/config"
	"github.com/amishk599/internradar/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"companies"},
	Short:   "List all configured sources",
	Long:    "Reads the sources file and prints a table of loaded sources, followed by any entries that were skipped and why.",
	RunE:    runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	sources, skipped, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load sources: %v\n", err)
		os.Exit(1)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Render", "URL"})
	browser := 0
	for _, s := range sources {
		if s.Render == model.RenderBrowser {
			browser++
		}
		t.AppendRow(table.Row{s.Name, string(s.Render), s.URL})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d loaded", len(sources)), fmt.Sprintf("%d browser", browser), ""})
	t.Render()

	if len(skipped) == 0 {
		return nil
	}

	fmt.Println()
	st := table.NewWriter()
	st.SetOutputMirror(os.Stdout)
	st.SetStyle(table.StyleLight)
	st.SetTitle("Skipped")
	st.AppendHeader(table.Row{"Source", "Reason"})
	for _, s := range skipped {
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		st.AppendRow(table.Row{name, s.Reason})
	}
	st.Render()
	return nil
}
