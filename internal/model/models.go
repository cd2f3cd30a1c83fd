// Package model defines core data structures for netcrawl.
package model

import "time"

// CrawlStatus tracks the lifecycle of a hostname in the inventory.
type CrawlStatus string

const (
	// StatusClaimed means the hostname is enqueued or in flight.
	StatusClaimed CrawlStatus = "claimed"
	// StatusCrawled means the device was visited and inventoried.
	StatusCrawled CrawlStatus = "crawled"
	// StatusErrored means the visit failed terminally.
	StatusErrored CrawlStatus = "errored"
)

// DeviceRecord represents one inventoried device, keyed by normalized hostname.
type DeviceRecord struct {
	Hostname       string      `json:"hostname"`
	IP             string      `json:"ip"`
	Serials        []string    `json:"serial"`
	DeviceType     string      `json:"device_type"`
	Platforms      []string    `json:"platform"`
	Version        string      `json:"version"`
	Rommon         string      `json:"rommon"`
	ConfigRegister string      `json:"config_register"`
	MACAddresses   []string    `json:"mac_address"`
	Uptime         string      `json:"uptime"`
	LastCrawled    time.Time   `json:"last_crawled"`
	Status         CrawlStatus `json:"status"`
	Error          string      `json:"error,omitempty"`
}

// Neighbor is one CDP neighbor entry as reported by a visited device.
// Hostname is the raw device ID from the wire, not yet normalized.
type Neighbor struct {
	Hostname        string `json:"hostname"`
	MgmtIP          string `json:"mgmt_ip"`
	Platform        string `json:"platform"`
	Capabilities    string `json:"capabilities"`
	LocalInterface  string `json:"local_interface"`
	RemoteInterface string `json:"remote_interface"`
	Version         string `json:"version"`
}

// NeighborEdge is one adjacency between two inventoried hostnames.
type NeighborEdge struct {
	FromHostname      string    `json:"from_hostname"`
	ToHostname        string    `json:"to_hostname"`
	LocalInterface    string    `json:"local_interface"`
	NeighborInterface string    `json:"neighbor_interface"`
	DiscoveredAt      time.Time `json:"discovered_at"`
}

// HostError pairs an errored hostname with its failure reason.
type HostError struct {
	Hostname string `json:"hostname"`
	Reason   string `json:"reason"`
}

// CrawlSummary aggregates inventory counts after (or during) a crawl run.
type CrawlSummary struct {
	Total      int           `json:"total"`
	Crawled    int           `json:"crawled"`
	Errored    int           `json:"errored"`
	Incomplete int           `json:"incomplete"`
	Errors     []HostError   `json:"errors,omitempty"`
	Claimed    []string      `json:"claimed,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}
