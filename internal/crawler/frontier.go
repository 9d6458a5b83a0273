package crawler

import (
	"context"
	"sync"
)

// URLState is the lifecycle position of a URL inside the Frontier.
type URLState int

// URL lifecycle: unseen -> pending -> visited.
const (
	StateUnseen URLState = iota
	StatePending
	StateVisited
)

func (s URLState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateVisited:
		return "visited"
	default:
		return "unseen"
	}
}

// FrontierStats is a point-in-time snapshot of the frontier counters.
type FrontierStats struct {
	Queued   int `json:"queued"`
	InFlight int `json:"in_flight"`
	Pending  int `json:"pending"`
	Visited  int `json:"visited"`
}

// Frontier owns the FIFO crawl queue together with the pending and visited sets.
// A URL stays pending from Push until Done, including while a worker holds it,
// so it is never in both sets and never enqueued twice.
type Frontier struct {
	mu       sync.Mutex
	queue    []string
	head     int
	pending  map[string]struct{}
	visited  map[string]struct{}
	inFlight int
	changed  chan struct{}
}

// NewFrontier constructs an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		pending: make(map[string]struct{}),
		visited: make(map[string]struct{}),
		changed: make(chan struct{}),
	}
}

// Push enqueues url unless it is already pending or visited.
func (f *Frontier) Push(url string) bool {
	if url == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pending[url]; ok {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.pending[url] = struct{}{}
	f.queue = append(f.queue, url)
	f.notifyLocked()
	return true
}

// Next hands out the earliest-enqueued URL. It blocks while other workers still
// hold URLs that may discover more links, and returns false once the queue is
// drained with nothing in flight, or when ctx ends.
func (f *Frontier) Next(ctx context.Context) (string, bool) {
	for {
		f.mu.Lock()
		if f.head < len(f.queue) {
			url := f.queue[f.head]
			f.queue[f.head] = ""
			f.head++
			f.compactLocked()
			f.inFlight++
			f.mu.Unlock()
			return url, true
		}
		if f.inFlight == 0 {
			f.mu.Unlock()
			return "", false
		}
		changed := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-changed:
		}
	}
}

// Done marks a URL handed out by Next as visited.
func (f *Frontier) Done(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pending[url]; !ok {
		return
	}
	delete(f.pending, url)
	f.visited[url] = struct{}{}
	f.inFlight--
	f.notifyLocked()
}

// State reports where url currently sits in the lifecycle.
func (f *Frontier) State(url string) URLState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[url]; ok {
		return StateVisited
	}
	if _, ok := f.pending[url]; ok {
		return StatePending
	}
	return StateUnseen
}

// Stats returns current counters.
func (f *Frontier) Stats() FrontierStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FrontierStats{
		Queued:   len(f.queue) - f.head,
		InFlight: f.inFlight,
		Pending:  len(f.pending),
		Visited:  len(f.visited),
	}
}

func (f *Frontier) notifyLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *Frontier) compactLocked() {
	if f.head < 1024 || f.head*2 < len(f.queue) {
		return
	}
	f.queue = append([]string(nil), f.queue[f.head:]...)
	f.head = 0
}
