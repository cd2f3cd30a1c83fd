// Package storage provides SQLite persistence for netcrawl.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Open creates or opens the inventory database under dataDir.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "netcrawl.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection serializes
	// claims and upserts from all workers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	wrapped := &DB{DB: db}
	if err := wrapped.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return wrapped, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			hostname TEXT PRIMARY KEY,
			ip TEXT DEFAULT '',
			serial TEXT DEFAULT '',
			device_type TEXT DEFAULT '',
			platform TEXT DEFAULT '',
			version TEXT DEFAULT '',
			rommon TEXT DEFAULT '',
			config_register TEXT DEFAULT '',
			mac_address TEXT DEFAULT '',
			uptime TEXT DEFAULT '',
			last_crawled DATETIME,
			status TEXT NOT NULL DEFAULT 'claimed',
			error TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status)`,

		`CREATE TABLE IF NOT EXISTS neighbor_edges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_hostname TEXT NOT NULL,
			to_hostname TEXT NOT NULL,
			local_interface TEXT NOT NULL DEFAULT '',
			neighbor_interface TEXT DEFAULT '',
			discovered_at DATETIME,
			UNIQUE(from_hostname, to_hostname, local_interface)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_from ON neighbor_edges(from_hostname)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
