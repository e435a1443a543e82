package domain

import "time"

// GapUnit is the base unit for inter-arrival gap statistics. Conversion to
// other units is a presentation concern.
const GapUnit = "seconds"

// InsufficientData marks a statistics response that could not be computed
// because fewer than two qualifying events exist.
const InsufficientData = "insufficient data"

// TypeCountReport is the result of a windowed per-type count.
type TypeCountReport struct {
	Counts     map[EventType]int64 `json:"counts"`
	Total      int64               `json:"total"`
	TimeWindow string              `json:"time_window"`
	Timestamp  time.Time           `json:"timestamp"`
}

// PRGapReport holds inter-arrival gap statistics for pull request events of
// a single repository. Gap values are in seconds. AverageGap is nil when
// fewer than two qualifying events exist; Error then carries
// InsufficientData.
type PRGapReport struct {
	Repository string     `json:"repository"`
	AverageGap *float64   `json:"average_gap"`
	TotalCount int64      `json:"total_count"`
	FirstTime  *time.Time `json:"first_time,omitempty"`
	LastTime   *time.Time `json:"last_time,omitempty"`
	MinGap     *float64   `json:"min_gap,omitempty"`
	MaxGap     *float64   `json:"max_gap,omitempty"`
	Unit       string     `json:"unit"`
	Error      string     `json:"error,omitempty"`
}

// LeaderboardEntry is one row of the repositories-by-PR-activity leaderboard.
type LeaderboardEntry struct {
	Repository string `json:"repository"`
	Count      int64  `json:"count"`
}

// StorageStats describes the current state of the event store and the
// ingestion loop driving it.
type StorageStats struct {
	TotalEventsStored int64     `json:"total_events_stored"`
	LastFetchTime     time.Time `json:"last_fetch_time"`
	FetchInterval     float64   `json:"fetch_interval_seconds"`
}
