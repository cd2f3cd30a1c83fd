package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/user/netcrawl/internal/connect"
	"github.com/user/netcrawl/internal/crawler"
	"github.com/user/netcrawl/internal/model"
	"github.com/user/netcrawl/internal/report"
	"github.com/user/netcrawl/internal/session"
	"github.com/user/netcrawl/internal/storage"
	"github.com/user/netcrawl/internal/textfsm"
	"github.com/user/netcrawl/internal/tui"
	"github.com/user/netcrawl/internal/util"
)

var (
	crawlFresh    bool
	crawlProgress bool
	crawlNoExport bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the network starting from the seed device",
	Long: `Crawl the network breadth-first starting from the seed device.

Every discovered neighbor is visited exactly once. Devices that fail to
answer are recorded with their failure reason and the crawl continues.
The crawl exits successfully once the frontier is exhausted, regardless
of per-device errors; it fails only when the configuration is invalid or
the seed device itself was never successfully visited.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().String("seed", "", "Seed device hostname or IP")
	crawlCmd.Flags().Int("workers", 0, "Number of concurrent crawl workers")
	crawlCmd.Flags().String("family", "", "Default device family (cisco_ios, cisco_nxos)")
	crawlCmd.Flags().String("username", "", "SSH username")
	crawlCmd.Flags().String("password", "", "SSH password")
	crawlCmd.Flags().String("key-file", "", "SSH private key file")
	crawlCmd.Flags().BoolVar(&crawlFresh, "fresh", false,
		"Reset the inventory before crawling")
	crawlCmd.Flags().BoolVar(&crawlProgress, "progress", false,
		"Show a live progress view")
	crawlCmd.Flags().BoolVar(&crawlNoExport, "no-export", false,
		"Skip the CSV export after the crawl")

	viper.BindPFlag("seed_device", crawlCmd.Flags().Lookup("seed"))
	viper.BindPFlag("workers", crawlCmd.Flags().Lookup("workers"))
	viper.BindPFlag("device_family", crawlCmd.Flags().Lookup("family"))
	viper.BindPFlag("username", crawlCmd.Flags().Lookup("username"))
	viper.BindPFlag("password", crawlCmd.Flags().Lookup("password"))
	viper.BindPFlag("key_file", crawlCmd.Flags().Lookup("key-file"))
}

func runCrawl(cmd *cobra.Command, args []string) error {
	// Flags bound after LoadConfig ran; re-resolve the overridable fields.
	if v := viper.GetString("seed_device"); v != "" {
		cfg.SeedDevice = v
	}
	if v := viper.GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if v := viper.GetString("device_family"); v != "" {
		cfg.DeviceFamily = v
	}
	if v := viper.GetString("username"); v != "" {
		cfg.Username = v
	}
	if v := viper.GetString("password"); v != "" {
		cfg.Password = v
	}
	if v := viper.GetString("key_file"); v != "" {
		cfg.KeyFile = v
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	store := storage.NewInventoryStorage(db)

	if crawlFresh {
		if err := store.Reset(); err != nil {
			return fmt.Errorf("failed to reset inventory: %w", err)
		}
		util.Info("Inventory reset")
	}

	connector := connect.NewSSHConnector(cfg.SSHPort, cfg.ConnectTimeout)
	templates := textfsm.NewStore(cfg.TemplateDir)
	manager := session.NewManager(connector, templates, session.Options{
		Credentials: connect.Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
			KeyFile:  cfg.KeyFile,
		},
		CommandTimeout: cfg.CommandTimeout,
		Retries:        cfg.CommandRetries,
		RetryBackoff:   cfg.RetryBackoff,
		DefaultFamily:  cfg.DeviceFamily,
	})

	cr := crawler.New(store, manager, crawler.Options{
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		DefaultFamily: cfg.DeviceFamily,
		ExcludeHosts:  cfg.ExcludeHosts,
		IncludeOnly:   cfg.IncludeOnly,
		SkipPlatforms: cfg.SkipPlatforms,
		StripDomains:  cfg.StripDomains,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var summary *model.CrawlSummary
	if crawlProgress {
		summary, err = runWithProgress(ctx, cr, cfg.SeedDevice)
	} else {
		util.Info("Starting crawl from %s with %d workers", cfg.SeedDevice, cfg.Workers)
		summary, err = cr.Run(ctx, cfg.SeedDevice)
	}
	if err != nil {
		return err
	}

	printSummary(summary)

	if !crawlNoExport {
		exporter := report.NewExporter(store)
		rows, err := exporter.WriteCSV(cfg.ExportPath)
		if err != nil {
			return fmt.Errorf("failed to export inventory: %w", err)
		}
		fmt.Printf("Exported %d devices to %s\n", rows, cfg.ExportPath)
	}

	return checkSeedVisited(store, cfg)
}

// runWithProgress runs the crawl behind a live bubbletea view. The crawl
// itself runs in a goroutine and keeps going even if the view is detached.
func runWithProgress(ctx context.Context, cr *crawler.Crawler, seed string) (*model.CrawlSummary, error) {
	events := make(chan crawler.Event, 64)
	cr.SetEvents(events)

	p := tea.NewProgram(tui.NewProgress(seed))

	type result struct {
		summary *model.CrawlSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := cr.Run(ctx, seed)
		close(events)
		done <- result{summary, err}
		p.Send(tui.DoneMsg{})
	}()
	go func() {
		for ev := range events {
			p.Send(tui.EventMsg{Event: ev})
		}
	}()

	if _, err := p.Run(); err != nil {
		util.Warn("Progress view failed: %v", err)
	}

	res := <-done
	return res.summary, res.err
}

// checkSeedVisited fails the run when the seed device itself never produced
// an identification record. A crawl that cannot see its seed saw nothing.
func checkSeedVisited(store *storage.InventoryStorage, cfg *util.Config) error {
	norm := crawler.Normalizer{StripDomains: cfg.StripDomains}
	key := norm.Normalize(cfg.SeedDevice)
	rec, err := store.GetDevice(key)
	if err != nil {
		return fmt.Errorf("failed to look up seed device: %w", err)
	}
	if rec == nil || rec.Status != model.StatusCrawled {
		reason := "not visited"
		if rec != nil && rec.Error != "" {
			reason = rec.Error
		}
		return fmt.Errorf("seed device %s was never successfully crawled: %s", key, reason)
	}
	return nil
}

func printSummary(summary *model.CrawlSummary) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	fmt.Println()
	fmt.Println(titleStyle.Render("Crawl Summary"))
	fmt.Printf("%s %s\n", labelStyle.Render("Devices:"), valueStyle.Render(fmt.Sprintf("%d", summary.Total)))
	fmt.Printf("%s %s\n", labelStyle.Render("Crawled:"), valueStyle.Render(fmt.Sprintf("%d", summary.Crawled)))
	fmt.Printf("%s %s\n", labelStyle.Render("Errored:"), valueStyle.Render(fmt.Sprintf("%d", summary.Errored)))
	if summary.Incomplete > 0 {
		fmt.Printf("%s %s\n", labelStyle.Render("Incomplete:"), errorStyle.Render(fmt.Sprintf("%d", summary.Incomplete)))
	}
	if summary.Duration > 0 {
		fmt.Printf("%s %s\n", labelStyle.Render("Duration:"), valueStyle.Render(summary.Duration.String()))
	}

	if len(summary.Errors) > 0 {
		fmt.Println()
		fmt.Println(titleStyle.Render("Failures"))
		for _, hostErr := range summary.Errors {
			fmt.Printf("  %s %s\n", errorStyle.Render(hostErr.Hostname), labelStyle.Render(hostErr.Reason))
		}
	}
	fmt.Println()
}
