package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/user/netcrawl/internal/model"
)

// InventoryStorage is the durable record of every device ever crawled plus
// the claim table preventing duplicate crawls. All methods are safe under
// concurrent invocation from multiple workers.
type InventoryStorage struct {
	db *DB
}

// NewInventoryStorage creates a new inventory storage handler.
func NewInventoryStorage(db *DB) *InventoryStorage {
	return &InventoryStorage{db: db}
}

// TryClaim atomically transitions hostname from unseen to claimed. It
// returns true for exactly one caller per hostname; any later caller (or a
// hostname already crawled or errored) gets false.
func (s *InventoryStorage) TryClaim(hostname string) (bool, error) {
	query := `INSERT INTO devices (hostname, status) VALUES (?, ?)
			  ON CONFLICT(hostname) DO NOTHING`

	result, err := s.db.Exec(query, hostname, model.StatusClaimed)
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", hostname, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", hostname, err)
	}
	return n == 1, nil
}

// UpsertDevice stores or updates a device record in place.
func (s *InventoryStorage) UpsertDevice(rec *model.DeviceRecord) error {
	query := `INSERT INTO devices (hostname, ip, serial, device_type, platform, version,
			  rommon, config_register, mac_address, uptime, last_crawled, status, error)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(hostname) DO UPDATE SET
			  ip = excluded.ip,
			  serial = excluded.serial,
			  device_type = excluded.device_type,
			  platform = excluded.platform,
			  version = excluded.version,
			  rommon = excluded.rommon,
			  config_register = excluded.config_register,
			  mac_address = excluded.mac_address,
			  uptime = excluded.uptime,
			  last_crawled = excluded.last_crawled,
			  status = excluded.status,
			  error = excluded.error`

	_, err := s.db.Exec(query,
		rec.Hostname, rec.IP, joinList(rec.Serials), rec.DeviceType,
		joinList(rec.Platforms), rec.Version, rec.Rommon, rec.ConfigRegister,
		joinList(rec.MACAddresses), rec.Uptime, rec.LastCrawled, rec.Status, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", rec.Hostname, err)
	}
	return nil
}

// MarkErrored records a terminal visit failure for a hostname.
func (s *InventoryStorage) MarkErrored(hostname, reason string) error {
	query := `INSERT INTO devices (hostname, status, error, last_crawled)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(hostname) DO UPDATE SET
			  status = excluded.status,
			  error = excluded.error,
			  last_crawled = excluded.last_crawled`

	_, err := s.db.Exec(query, hostname, model.StatusErrored, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark %s errored: %w", hostname, err)
	}
	return nil
}

// RecordEdge stores one adjacency, upserting on (from, to, local_interface).
func (s *InventoryStorage) RecordEdge(edge *model.NeighborEdge) error {
	query := `INSERT INTO neighbor_edges (from_hostname, to_hostname, local_interface,
			  neighbor_interface, discovered_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(from_hostname, to_hostname, local_interface) DO UPDATE SET
			  neighbor_interface = excluded.neighbor_interface,
			  discovered_at = excluded.discovered_at`

	_, err := s.db.Exec(query, edge.FromHostname, edge.ToHostname,
		edge.LocalInterface, edge.NeighborInterface, edge.DiscoveredAt)
	if err != nil {
		return fmt.Errorf("failed to record edge %s->%s: %w", edge.FromHostname, edge.ToHostname, err)
	}
	return nil
}

// GetDevice returns a device by hostname, or nil if absent.
func (s *InventoryStorage) GetDevice(hostname string) (*model.DeviceRecord, error) {
	query := deviceSelect + ` WHERE hostname = ?`
	rec, err := scanDevice(s.db.QueryRow(query, hostname))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %s: %w", hostname, err)
	}
	return rec, nil
}

// AllDevices returns every device record, sorted by hostname.
func (s *InventoryStorage) AllDevices() ([]model.DeviceRecord, error) {
	rows, err := s.db.Query(deviceSelect + ` ORDER BY hostname`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []model.DeviceRecord
	for rows.Next() {
		rec, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *rec)
	}
	return devices, rows.Err()
}

// AllEdges returns every adjacency, sorted by the from hostname.
func (s *InventoryStorage) AllEdges() ([]model.NeighborEdge, error) {
	query := `SELECT from_hostname, to_hostname, local_interface, neighbor_interface, discovered_at
			  FROM neighbor_edges ORDER BY from_hostname, to_hostname, local_interface`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []model.NeighborEdge
	for rows.Next() {
		var e model.NeighborEdge
		var discovered sql.NullTime
		if err := rows.Scan(&e.FromHostname, &e.ToHostname, &e.LocalInterface,
			&e.NeighborInterface, &discovered); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if discovered.Valid {
			e.DiscoveredAt = discovered.Time
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Summary returns counts by status plus the errored and incomplete hosts.
func (s *InventoryStorage) Summary() (*model.CrawlSummary, error) {
	summary := &model.CrawlSummary{}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM devices GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		summary.Total += count
		switch model.CrawlStatus(status) {
		case model.StatusCrawled:
			summary.Crawled = count
		case model.StatusErrored:
			summary.Errored = count
		case model.StatusClaimed:
			summary.Incomplete = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	errRows, err := s.db.Query(`SELECT hostname, error FROM devices
								WHERE status = ? ORDER BY hostname`, model.StatusErrored)
	if err != nil {
		return nil, fmt.Errorf("failed to query errored hosts: %w", err)
	}
	defer errRows.Close()
	for errRows.Next() {
		var he model.HostError
		if err := errRows.Scan(&he.Hostname, &he.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan errored host: %w", err)
		}
		summary.Errors = append(summary.Errors, he)
	}
	if err := errRows.Err(); err != nil {
		return nil, err
	}

	claimRows, err := s.db.Query(`SELECT hostname FROM devices
								  WHERE status = ? ORDER BY hostname`, model.StatusClaimed)
	if err != nil {
		return nil, fmt.Errorf("failed to query claimed hosts: %w", err)
	}
	defer claimRows.Close()
	for claimRows.Next() {
		var hostname string
		if err := claimRows.Scan(&hostname); err != nil {
			return nil, fmt.Errorf("failed to scan claimed host: %w", err)
		}
		summary.Claimed = append(summary.Claimed, hostname)
	}
	return summary, claimRows.Err()
}

// Reset clears the inventory and all recorded edges.
func (s *InventoryStorage) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM devices`); err != nil {
		return fmt.Errorf("failed to reset devices: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM neighbor_edges`); err != nil {
		return fmt.Errorf("failed to reset edges: %w", err)
	}
	return nil
}

const deviceSelect = `SELECT hostname, ip, serial, device_type, platform, version,
	rommon, config_register, mac_address, uptime, last_crawled, status, error FROM devices`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*model.DeviceRecord, error) {
	var rec model.DeviceRecord
	var serial, platform, mac string
	var lastCrawled sql.NullTime
	var status string

	err := row.Scan(&rec.Hostname, &rec.IP, &serial, &rec.DeviceType, &platform,
		&rec.Version, &rec.Rommon, &rec.ConfigRegister, &mac, &rec.Uptime,
		&lastCrawled, &status, &rec.Error)
	if err != nil {
		return nil, err
	}

	rec.Serials = splitList(serial)
	rec.Platforms = splitList(platform)
	rec.MACAddresses = splitList(mac)
	rec.Status = model.CrawlStatus(status)
	if lastCrawled.Valid {
		rec.LastCrawled = lastCrawled.Time
	}
	return &rec, nil
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
