package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Show the resolved configuration",
	Long:  "Show the effective configuration after file, environment and flag resolution, and validate it.",
	RunE:  runShowConfig,
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		MarginBottom(1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Width(18)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	okStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("46")).
		Bold(true)

	badStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	row := func(label, value string) {
		fmt.Println(labelStyle.Render(label) + valueStyle.Render(value))
	}

	fmt.Println(titleStyle.Render("NetCrawl Configuration"))
	row("Data dir", cfg.DataDir)
	row("Log level", cfg.LogLevel)
	row("Seed device", cfg.SeedDevice)
	row("Device family", cfg.DeviceFamily)
	row("Workers", fmt.Sprintf("%d", cfg.Workers))
	row("Queue size", fmt.Sprintf("%d", cfg.QueueSize))
	row("Username", cfg.Username)
	row("Password", maskSecret(cfg.Password))
	row("Key file", cfg.KeyFile)
	row("SSH port", fmt.Sprintf("%d", cfg.SSHPort))
	row("Connect timeout", cfg.ConnectTimeout.String())
	row("Command timeout", cfg.CommandTimeout.String())
	row("Command retries", fmt.Sprintf("%d", cfg.CommandRetries))
	row("Retry backoff", cfg.RetryBackoff.String())
	row("Exclude hosts", strings.Join(cfg.ExcludeHosts, ", "))
	row("Include only", strings.Join(cfg.IncludeOnly, ", "))
	row("Strip domains", strings.Join(cfg.StripDomains, ", "))
	row("Skip platforms", strings.Join(cfg.SkipPlatforms, ", "))
	row("Template dir", cfg.TemplateDir)
	row("Export path", cfg.ExportPath)

	fmt.Println()
	if err := cfg.Validate(); err != nil {
		fmt.Println(badStyle.Render("Invalid: ") + err.Error())
		return err
	}
	fmt.Println(okStyle.Render("Configuration is valid"))
	return nil
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}
