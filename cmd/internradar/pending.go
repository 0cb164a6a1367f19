package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/amishk599/internradar/internal/store"
)

var pendingLimit int

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List stored postings that were never delivered",
	Long:  "Prints the stored records whose digest was never confirmed, oldest first. Read-only: nothing is re-sent or marked.",
	RunE:  runPending,
}

func init() {
	pendingCmd.Flags().IntVarP(&pendingLimit, "limit", "n", 50, "maximum rows to show (0 for all)")
	rootCmd.AddCommand(pendingCmd)
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	jobStore, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer jobStore.Close()

	jobs, err := jobStore.ListUnnotified(ctx, pendingLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list pending records: %v\n", err)
		os.Exit(1)
	}

	if len(jobs) == 0 {
		fmt.Println("No undelivered postings.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Discovered", "Source", "Title", "Company", "URL"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: 40, WidthMaxEnforcer: text.Trim},
		{Name: "URL", WidthMax: 60, WidthMaxEnforcer: text.Trim},
	})
	for _, j := range jobs {
		t.AppendRow(table.Row{
			j.DiscoveredAt.Local().Format("2006-01-02 15:04"),
			j.Source,
			j.Title,
			j.Company,
			j.URL,
		})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d pending", len(jobs))})
	t.Render()
	return nil
}
