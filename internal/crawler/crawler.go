// Package crawler owns the frontier of hostnames to visit and the worker
// pool that drains it. The inventory store's atomic claim is the sole
// mechanism preventing the same hostname from being crawled twice.
package crawler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/user/netcrawl/internal/connect"
	"github.com/user/netcrawl/internal/model"
	"github.com/user/netcrawl/internal/session"
	"github.com/user/netcrawl/internal/storage"
	"github.com/user/netcrawl/internal/util"
)

// Access points answer CDP but expose no shell; they are inventoried from
// the neighbor data instead of being visited.
var accessPointMarkers = []string{"AIR-", "C9130", "C9120", "C9115", "C9105"}

// Visitor performs one device visit. Satisfied by session.Manager.
type Visitor interface {
	Visit(ctx context.Context, target, family string) (*model.DeviceRecord, []model.Neighbor, error)
}

// Options configures a crawl run.
type Options struct {
	Workers       int
	QueueSize     int
	DefaultFamily string
	ExcludeHosts  []string
	IncludeOnly   []string
	SkipPlatforms []string
	StripDomains  []string
}

// Crawler traverses the reachable device graph exactly once per node.
type Crawler struct {
	store   *storage.InventoryStorage
	visitor Visitor
	opts    Options
	norm    Normalizer

	frontier chan frontierItem
	// pending counts queued plus in-flight items; the frontier closes when
	// it reaches zero. An empty queue alone never ends the crawl, since
	// in-flight workers may still enqueue more work.
	pending sync.WaitGroup

	events chan<- Event

	queued  atomic.Int64
	crawled atomic.Int64
	errored atomic.Int64
}

// frontierItem is one pending visit. ip is an optional management-IP
// fallback reported over CDP, tried when the hostname itself is unreachable.
type frontierItem struct {
	hostname string
	family   string
	ip       string
}

// New creates a crawler over the given store and visitor.
func New(store *storage.InventoryStorage, visitor Visitor, opts Options) *Crawler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if opts.DefaultFamily == "" {
		opts.DefaultFamily = "cisco_ios"
	}
	return &Crawler{
		store:   store,
		visitor: visitor,
		opts:    opts,
		norm:    Normalizer{StripDomains: opts.StripDomains},
	}
}

// SetEvents registers a progress event channel. Sends never block; slow
// consumers miss intermediate snapshots, not the final one.
func (c *Crawler) SetEvents(ch chan<- Event) {
	c.events = ch
}

// Run seeds the frontier and blocks until it is exhausted or ctx is
// canceled. On cancellation, in-flight visits complete (remote command
// execution is not preemptible) and the rest of the queue is dropped,
// leaving those hostnames visible as incomplete.
func (c *Crawler) Run(ctx context.Context, seed string) (*model.CrawlSummary, error) {
	start := time.Now()

	seedKey := c.norm.Normalize(seed)
	if seedKey == "" {
		return nil, errors.Wrapf(util.ErrConfig, "seed device %q normalizes to an empty key", seed)
	}

	c.frontier = make(chan frontierItem, c.opts.QueueSize)

	claimed, err := c.store.TryClaim(seedKey)
	if err != nil {
		return nil, errors.Wrap(err, "claim seed")
	}
	if claimed {
		c.enqueue(frontierItem{hostname: seedKey, family: c.opts.DefaultFamily})
	} else {
		util.Info("Seed %s already present in inventory; nothing to do", seedKey)
	}

	// Close the frontier once no work is queued or in flight.
	go func() {
		c.pending.Wait()
		close(c.frontier)
	}()

	var workers sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			c.worker(ctx, id)
		}(i)
	}
	workers.Wait()

	summary, err := c.store.Summary()
	if err != nil {
		return nil, errors.Wrap(err, "summarize crawl")
	}
	summary.Duration = time.Since(start)
	c.emit(Event{Type: EventDone})

	if len(summary.Claimed) > 0 {
		util.Warn("Crawl stopped with %d hostname(s) still claimed but not visited: %s",
			len(summary.Claimed), strings.Join(summary.Claimed, ", "))
	}
	return summary, nil
}

func (c *Crawler) worker(ctx context.Context, id int) {
	for item := range c.frontier {
		if ctx.Err() != nil {
			// Stop signal: drop remaining queue entries. Their claims
			// stay in the store and surface as incomplete.
			c.pending.Done()
			continue
		}
		c.process(ctx, item)
		c.pending.Done()
	}
	util.Debug("Worker %d exiting", id)
}

// enqueue assumes the caller already won the claim for the item.
func (c *Crawler) enqueue(item frontierItem) {
	c.pending.Add(1)
	select {
	case c.frontier <- item:
	default:
		// Frontier buffer full; hand the send to a goroutine so the
		// worker keeps draining. pending already accounts for the item.
		go func() { c.frontier <- item }()
	}
}

func (c *Crawler) process(ctx context.Context, item frontierItem) {
	log := util.Log().With().Str("device", item.hostname).Logger()
	c.emit(Event{Type: EventVisiting, Hostname: item.hostname})

	// The in-flight visit finishes even when the crawl is being stopped.
	visitCtx := context.WithoutCancel(ctx)

	rec, neighbors, err := c.visitor.Visit(visitCtx, item.hostname, item.family)
	if err != nil && item.ip != "" && errors.Is(err, connect.ErrConnection) {
		log.Warn().Str("ip", item.ip).Msg("hostname unreachable, retrying via management IP")
		rec, neighbors, err = c.visitor.Visit(visitCtx, item.ip, item.family)
	}
	if err != nil {
		reason := FailureReason(err)
		log.Warn().Str("reason", reason).Msg("visit failed")
		if serr := c.store.MarkErrored(item.hostname, reason); serr != nil {
			log.Error().Err(serr).Msg("failed to persist error status")
		}
		c.errored.Add(1)
		c.emit(Event{Type: EventErrored, Hostname: item.hostname})
		return
	}

	// The normalized crawl key is the primary key, not whatever the device
	// reported about itself.
	rec.Hostname = item.hostname
	if rec.IP == "" {
		rec.IP = item.ip
	}
	rec.Status = model.StatusCrawled
	rec.LastCrawled = time.Now()
	rec.Error = ""
	if serr := c.store.UpsertDevice(rec); serr != nil {
		log.Error().Err(serr).Msg("failed to persist device record")
	}
	c.crawled.Add(1)
	c.emit(Event{Type: EventCrawled, Hostname: item.hostname})
	log.Info().Int("neighbors", len(neighbors)).Msg("device crawled")

	for _, neighbor := range neighbors {
		c.handleNeighbor(item.hostname, neighbor)
	}
}

func (c *Crawler) handleNeighbor(from string, neighbor model.Neighbor) {
	key := c.norm.Normalize(neighbor.Hostname)
	if key == "" || key == from {
		return
	}
	if c.skipPlatform(neighbor.Platform) {
		util.Debug("Skipping neighbor %s (platform %q)", key, neighbor.Platform)
		return
	}

	edge := &model.NeighborEdge{
		FromHostname:      from,
		ToHostname:        key,
		LocalInterface:    neighbor.LocalInterface,
		NeighborInterface: neighbor.RemoteInterface,
		DiscoveredAt:      time.Now(),
	}
	if err := c.store.RecordEdge(edge); err != nil {
		util.Warn("Failed to record edge %s -> %s: %v", from, key, err)
	}

	if !c.shouldCrawl(key) {
		return
	}

	claimed, err := c.store.TryClaim(key)
	if err != nil {
		util.Error("Failed to claim %s: %v", key, err)
		return
	}
	if !claimed {
		// Lost a concurrent claim or already visited: a normal no-op.
		return
	}

	if isAccessPoint(neighbor.Platform) {
		c.inventoryAccessPoint(key, neighbor)
		return
	}

	family := session.GuessFamily(neighbor.Platform, c.opts.DefaultFamily)
	c.enqueue(frontierItem{hostname: key, family: family, ip: neighbor.MgmtIP})
	c.queued.Add(1)
	c.emit(Event{Type: EventQueued, Hostname: key})
}

// inventoryAccessPoint records an AP from its CDP advertisement. The claim
// was already won, so the record slot belongs to this caller.
func (c *Crawler) inventoryAccessPoint(key string, neighbor model.Neighbor) {
	rec := &model.DeviceRecord{
		Hostname:    key,
		IP:          neighbor.MgmtIP,
		DeviceType:  "access_point",
		Platforms:   []string{neighbor.Platform},
		Version:     neighbor.Version,
		Status:      model.StatusCrawled,
		LastCrawled: time.Now(),
	}
	if err := c.store.UpsertDevice(rec); err != nil {
		util.Warn("Failed to inventory access point %s: %v", key, err)
		return
	}
	c.crawled.Add(1)
	c.emit(Event{Type: EventCrawled, Hostname: key})
}

func (c *Crawler) shouldCrawl(key string) bool {
	for _, excluded := range c.opts.ExcludeHosts {
		if strings.EqualFold(excluded, key) {
			return false
		}
	}
	if len(c.opts.IncludeOnly) == 0 {
		return true
	}
	for _, included := range c.opts.IncludeOnly {
		if strings.EqualFold(included, key) {
			return true
		}
	}
	return false
}

func (c *Crawler) skipPlatform(platform string) bool {
	p := strings.ToUpper(platform)
	for _, marker := range c.opts.SkipPlatforms {
		if marker != "" && strings.Contains(p, strings.ToUpper(marker)) {
			return true
		}
	}
	return false
}

func isAccessPoint(platform string) bool {
	p := strings.ToUpper(platform)
	for _, marker := range accessPointMarkers {
		if strings.Contains(p, marker) {
			return true
		}
	}
	return false
}

func (c *Crawler) emit(event Event) {
	if c.events == nil {
		return
	}
	event.Queued = c.queued.Load()
	event.Crawled = c.crawled.Load()
	event.Errored = c.errored.Load()
	select {
	case c.events <- event:
	default:
	}
}

// FailureReason converts a visit error into the status reason persisted for
// the hostname, prefixed with its taxonomy class.
func FailureReason(err error) string {
	var label string
	switch {
	case errors.Is(err, connect.ErrConnection):
		label = "ConnectionError"
	case errors.Is(err, connect.ErrCommandTimeout):
		label = "CommandTimeoutError"
	case errors.Is(err, connect.ErrCommand):
		label = "CommandError"
	case errors.Is(err, session.ErrParse):
		label = "ParseError"
	default:
		label = "Error"
	}
	return label + ": " + err.Error()
}
