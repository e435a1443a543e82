package usecase

import (
	"sync"
	"time"
)

// DedupWindow is a rolling set of (identifier, created-at) pairs for events
// admitted within the last W. It is the sole source of truth for "already
// seen" within that horizon and is purged before each admission check.
// Process-lifetime state: a restart resets it to empty.
type DedupWindow struct {
	mu      sync.Mutex
	horizon time.Duration
	entries map[string]time.Time
}

// NewDedupWindow creates a dedup window with the given horizon.
func NewDedupWindow(horizon time.Duration) *DedupWindow {
	if horizon <= 0 {
		horizon = 30 * time.Minute
	}
	return &DedupWindow{
		horizon: horizon,
		entries: make(map[string]time.Time),
	}
}

// Seen reports whether id is present in the window.
func (w *DedupWindow) Seen(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[id]
	return ok
}

// Mark records id with the event's created-at time.
func (w *DedupWindow) Mark(id string, createdAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[id] = createdAt
}

// Purge drops entries whose created-at is older than the horizon relative
// to now, returning how many were removed.
func (w *DedupWindow) Purge(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-w.horizon)
	removed := 0
	for id, at := range w.entries {
		if at.Before(cutoff) {
			delete(w.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (w *DedupWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
