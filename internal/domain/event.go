package domain

import (
	"encoding/json"
	"time"
)

// EventType is the upstream-assigned kind of an event.
type EventType string

// The monitored event types. Records of any other type are discarded at
// admission.
const (
	TypeWatch       EventType = "WatchEvent"
	TypePullRequest EventType = "PullRequestEvent"
	TypeIssues      EventType = "IssuesEvent"
)

var monitoredTypes = []EventType{TypeWatch, TypePullRequest, TypeIssues}

// MonitoredTypes returns the admission allow-list in a stable order.
func MonitoredTypes() []EventType {
	out := make([]EventType, len(monitoredTypes))
	copy(out, monitoredTypes)
	return out
}

// IsMonitored reports whether t is on the admission allow-list.
func IsMonitored(t string) bool {
	for _, mt := range monitoredTypes {
		if string(mt) == t {
			return true
		}
	}
	return false
}

// RawRecord is a single record as returned by the feed, before admission.
type RawRecord struct {
	ID        string
	Type      string
	Repo      string
	CreatedAt time.Time
	Payload   json.RawMessage
}

// Event is an admitted record of monitored activity. CreatedAt is the
// upstream-assigned timestamp and is treated as the event's logical time.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Repo      string          `json:"repo"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// StreamMessageID is set when the event is read back from the archive
	// stream; it is never persisted with the event itself.
	StreamMessageID string `json:"-"`
}

// FetchResult is one cycle's worth of raw records pulled from the feed.
// Records preserve upstream order (newest first); FirstPage is the number of
// leading records that came from the first fetched page, which the admission
// filter needs for continuity tracking.
type FetchResult struct {
	Records        []RawRecord
	FirstPage      int
	Truncated      bool
	QuotaRemaining int
}

// Snapshot is a materialized windowed count, stored in a short-retention
// series for trend display. Snapshots are immutable once recorded.
type Snapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Counts    map[EventType]int64 `json:"counts"`
	Total     int64               `json:"total"`
}
