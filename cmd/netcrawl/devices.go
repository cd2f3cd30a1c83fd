package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/netcrawl/internal/model"
	"github.com/user/netcrawl/internal/storage"
)

var devicesStatusFilter string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List inventoried devices",
	Long:  "List all devices in the inventory, sorted by hostname.",
	RunE:  runDevices,
}

func init() {
	devicesCmd.Flags().StringVar(&devicesStatusFilter, "status", "",
		"Filter by status (claimed, crawled, errored)")
}

func runDevices(cmd *cobra.Command, args []string) error {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	crawledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	erroredStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	claimedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	store := storage.NewInventoryStorage(db)

	devices, err := store.AllDevices()
	if err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-32s %-16s %-18s %-16s %s",
		"HOSTNAME", "IP", "PLATFORM", "VERSION", "STATUS")))

	shown := 0
	for _, device := range devices {
		if devicesStatusFilter != "" && string(device.Status) != devicesStatusFilter {
			continue
		}
		shown++

		var statusText string
		switch device.Status {
		case model.StatusCrawled:
			statusText = crawledStyle.Render("crawled")
		case model.StatusErrored:
			statusText = erroredStyle.Render("errored")
		default:
			statusText = claimedStyle.Render("claimed")
		}

		fmt.Printf("%-32s %-16s %-18s %-16s %s\n",
			truncate(device.Hostname, 32),
			device.IP,
			truncate(strings.Join(device.Platforms, ","), 18),
			truncate(device.Version, 16),
			statusText)
	}

	fmt.Printf("\n%d devices\n", shown)
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
