package domain

import (
	"context"
	"time"
)

// BatchFetcher pulls one cycle's worth of raw records from the upstream
// feed. Implementations may return a non-empty partial result together with
// an error when pagination aborts mid-cycle; the records fetched before the
// failure are still valid.
type BatchFetcher interface {
	FetchBatch(ctx context.Context) (FetchResult, error)
}

// EventStore is the append/expire/range-query primitive over admitted
// events. All index writes for one event are applied atomically; eviction
// removes an event from every index as one unit. Query methods do not
// mutate state and may be called concurrently.
type EventStore interface {
	// Insert stores the event and updates the global, type, and (for pull
	// request events) repository indexes atomically. Inserting an already
	// stored event is harmless.
	Insert(ctx context.Context, event Event) error

	// CountByType counts stored events per monitored type with created-at
	// in [from, to].
	CountByType(ctx context.Context, from, to time.Time) (map[EventType]int64, error)

	// RepoTimestamps returns the created-at timestamps of all pull request
	// events indexed for repo, ascending.
	RepoTimestamps(ctx context.Context, repo string) ([]time.Time, error)

	// RepoCounts returns the pull request event count per indexed repository.
	RepoCounts(ctx context.Context) (map[string]int64, error)

	// EvictBefore removes all events with created-at before cutoff from
	// every index and deletes their records, returning how many were
	// removed.
	EvictBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// TotalEvents returns the number of events currently retained.
	TotalEvents(ctx context.Context) (int64, error)
}

// SnapshotStore holds the short-retention metric snapshot series.
type SnapshotStore interface {
	// Record appends a snapshot to the series.
	Record(ctx context.Context, snap Snapshot) error

	// List returns all live snapshots, oldest first.
	List(ctx context.Context) ([]Snapshot, error)

	// TrimBefore drops snapshots older than cutoff from the series.
	TrimBefore(ctx context.Context, cutoff time.Time) error
}

// ArchiveQueue buffers admitted events for the long-term archive worker.
type ArchiveQueue interface {
	// Publish appends events to the archive stream.
	Publish(ctx context.Context, events []Event) error

	// ReadBatch reads up to count unprocessed events for a consumer,
	// populating StreamMessageID on each.
	ReadBatch(ctx context.Context, group, consumer string, count int) ([]Event, error)

	// Acknowledge marks stream messages as processed.
	Acknowledge(ctx context.Context, group string, messageIDs ...string) error
}

// ArchiveSink is the final durable destination for archived events.
type ArchiveSink interface {
	// WriteBatch persists events idempotently; re-writing an already
	// archived event is a no-op.
	WriteBatch(ctx context.Context, events []Event) error
}
