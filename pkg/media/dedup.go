package media

import (
	"sync"
	"time"
)

// DefaultDedupWindow is the span during which repeated detection signals
// for the same key are suppressed.
const DefaultDedupWindow = 5 * time.Second

// Deduplicator suppresses repeated detection signals for the same file
// arriving within a fixed window. State is in-memory only: after a restart
// one redundant detection slips through and the store's path uniqueness
// absorbs it.
type Deduplicator struct {
	mutex  sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduplicator{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// ShouldProcess reports whether the key is fresh and records now as its
// last-seen time when it is.
func (d *Deduplicator) ShouldProcess(key string, now time.Time) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if last, ok := d.seen[key]; ok && now.Sub(last) < d.window {
		return false
	}

	d.seen[key] = now
	return true
}

// Prune drops entries older than the window to bound memory.
func (d *Deduplicator) Prune(now time.Time) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for key, last := range d.seen {
		if now.Sub(last) >= d.window {
			delete(d.seen, key)
		}
	}
}

// Len returns the number of tracked keys.
func (d *Deduplicator) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return len(d.seen)
}
