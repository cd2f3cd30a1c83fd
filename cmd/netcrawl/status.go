package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netcrawl/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show inventory status",
	Long:  "Show crawl status counts and any recorded device failures.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	crawledStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	erroredStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	store := storage.NewInventoryStorage(db)

	summary, err := store.Summary()
	if err != nil {
		return fmt.Errorf("failed to load summary: %w", err)
	}

	fmt.Println(titleStyle.Render("NetCrawl Inventory"))

	fmt.Print(labelStyle.Render("Devices: "))
	fmt.Println(valueStyle.Render(fmt.Sprintf("%d", summary.Total)))

	fmt.Print(labelStyle.Render("Crawled: "))
	fmt.Println(crawledStyle.Render(fmt.Sprintf("%d", summary.Crawled)))

	fmt.Print(labelStyle.Render("Errored: "))
	fmt.Println(erroredStyle.Render(fmt.Sprintf("%d", summary.Errored)))

	if summary.Incomplete > 0 {
		fmt.Print(labelStyle.Render("Incomplete: "))
		fmt.Println(erroredStyle.Render(fmt.Sprintf("%d", summary.Incomplete)))
	}

	if len(summary.Errors) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Failures"))
		for _, hostErr := range summary.Errors {
			fmt.Printf("  %s  %s\n",
				erroredStyle.Render(hostErr.Hostname),
				labelStyle.Render(hostErr.Reason))
		}
	}

	if len(summary.Claimed) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Incomplete (claimed, never visited)"))
		for _, hostname := range summary.Claimed {
			fmt.Printf("  %s\n", valueStyle.Render(hostname))
		}
	}

	return nil
}
