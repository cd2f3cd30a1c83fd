package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/netcrawl/internal/report"
	"github.com/user/netcrawl/internal/storage"
)

var (
	exportOutput   string
	exportMarkdown string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the inventory to CSV",
	Long: `Export the inventory to CSV, one row per device, sorted by hostname.
With --markdown, also write a markdown crawl report with a topology diagram.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"CSV output path (default from config)")
	exportCmd.Flags().StringVar(&exportMarkdown, "markdown", "",
		"Also write a markdown report to this path")
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	store := storage.NewInventoryStorage(db)

	path := exportOutput
	if path == "" {
		path = cfg.ExportPath
	}

	exporter := report.NewExporter(store)
	rows, err := exporter.WriteCSV(path)
	if err != nil {
		return fmt.Errorf("failed to export inventory: %w", err)
	}
	fmt.Printf("Exported %d devices to %s\n", rows, path)

	if exportMarkdown != "" {
		summary, err := store.Summary()
		if err != nil {
			return fmt.Errorf("failed to load summary: %w", err)
		}
		edges, err := store.AllEdges()
		if err != nil {
			return fmt.Errorf("failed to load edges: %w", err)
		}
		content := report.FormatMarkdown(summary, edges)
		if err := os.WriteFile(exportMarkdown, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("Wrote report to %s\n", exportMarkdown)
	}

	return nil
}
