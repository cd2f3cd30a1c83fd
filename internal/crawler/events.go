package crawler

// EventType identifies a crawl progress event.
type EventType int

const (
	// EventQueued means a hostname won its claim and entered the frontier.
	EventQueued EventType = iota
	// EventVisiting means a worker started a device visit.
	EventVisiting
	// EventCrawled means a device was visited and persisted.
	EventCrawled
	// EventErrored means a device visit failed terminally.
	EventErrored
	// EventDone means the frontier is exhausted or the crawl was stopped.
	EventDone
)

// Event is one progress update, carrying counter snapshots for display.
type Event struct {
	Type     EventType
	Hostname string
	Queued   int64
	Crawled  int64
	Errored  int64
}
