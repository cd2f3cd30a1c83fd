// Package report exports crawl results as CSV and markdown.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/netcrawl/internal/model"
	"github.com/user/netcrawl/internal/storage"
)

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"hostname", "ip", "serial", "device_type", "platform", "version",
	"rommon", "config_register", "mac_address", "uptime", "last_crawled",
	"status", "error",
}

// Exporter writes inventory exports.
type Exporter struct {
	store *storage.InventoryStorage
}

// NewExporter creates a new exporter.
func NewExporter(store *storage.InventoryStorage) *Exporter {
	return &Exporter{store: store}
}

// WriteCSV exports the full inventory to path, one row per device, sorted by
// hostname. It returns the number of data rows written.
func (e *Exporter) WriteCSV(path string) (int, error) {
	devices, err := e.store.AllDevices()
	if err != nil {
		return 0, fmt.Errorf("failed to load devices: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for _, device := range devices {
		if err := writer.Write(deviceRow(device)); err != nil {
			return 0, fmt.Errorf("failed to write row for %s: %w", device.Hostname, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush export: %w", err)
	}
	return len(devices), nil
}

func deviceRow(device model.DeviceRecord) []string {
	lastCrawled := ""
	if !device.LastCrawled.IsZero() {
		lastCrawled = device.LastCrawled.Format(time.RFC3339)
	}
	return []string{
		device.Hostname,
		device.IP,
		strings.Join(device.Serials, ","),
		device.DeviceType,
		strings.Join(device.Platforms, ","),
		device.Version,
		device.Rommon,
		device.ConfigRegister,
		strings.Join(device.MACAddresses, ","),
		device.Uptime,
		lastCrawled,
		string(device.Status),
		device.Error,
	}
}
