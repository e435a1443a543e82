package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/eventwatch/internal/domain"
)

// MockEventStore is an in-memory implementation of domain.EventStore for
// testing. Query methods operate on the Events slice so usecase tests can
// exercise real windowing behavior.
type MockEventStore struct {
	mu     sync.Mutex
	Events []domain.Event

	InsertErr error
	QueryErr  error
	EvictErr  error

	InsertCalls int
	EvictCalls  int
	LastCutoff  time.Time
}

func (m *MockEventStore) Insert(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertErr != nil {
		return m.InsertErr
	}
	for _, ev := range m.Events {
		if ev.ID == event.ID {
			return nil // idempotent
		}
	}
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockEventStore) CountByType(ctx context.Context, from, to time.Time) (map[domain.EventType]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	counts := make(map[domain.EventType]int64)
	for _, ev := range m.Events {
		if !ev.CreatedAt.Before(from) && !ev.CreatedAt.After(to) {
			counts[ev.Type]++
		}
	}
	return counts, nil
}

func (m *MockEventStore) RepoTimestamps(ctx context.Context, repo string) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var times []time.Time
	for _, ev := range m.Events {
		if ev.Type == domain.TypePullRequest && ev.Repo == repo {
			times = append(times, ev.CreatedAt)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

func (m *MockEventStore) RepoCounts(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	counts := make(map[string]int64)
	for _, ev := range m.Events {
		if ev.Type == domain.TypePullRequest && ev.Repo != "" {
			counts[ev.Repo]++
		}
	}
	return counts, nil
}

func (m *MockEventStore) EvictBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EvictCalls++
	m.LastCutoff = cutoff
	if m.EvictErr != nil {
		return 0, m.EvictErr
	}
	var kept []domain.Event
	var removed int64
	for _, ev := range m.Events {
		if ev.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	m.Events = kept
	return removed, nil
}

func (m *MockEventStore) TotalEvents(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return 0, m.QueryErr
	}
	return int64(len(m.Events)), nil
}

// MockSnapshotStore is an in-memory implementation of domain.SnapshotStore.
type MockSnapshotStore struct {
	mu        sync.Mutex
	Snapshots []domain.Snapshot

	RecordErr error
	ListErr   error
	TrimErr   error
}

func (m *MockSnapshotStore) Record(ctx context.Context, snap domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Snapshots = append(m.Snapshots, snap)
	return nil
}

func (m *MockSnapshotStore) List(ctx context.Context) ([]domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]domain.Snapshot, len(m.Snapshots))
	copy(out, m.Snapshots)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MockSnapshotStore) TrimBefore(ctx context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TrimErr != nil {
		return m.TrimErr
	}
	var kept []domain.Snapshot
	for _, s := range m.Snapshots {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	m.Snapshots = kept
	return nil
}

// MockFetcher is a scripted implementation of domain.BatchFetcher. Results
// are returned in order; the last entry repeats once the script runs out.
type MockFetcher struct {
	mu      sync.Mutex
	Results []domain.FetchResult
	Errs    []error
	Calls   int
}

func (m *MockFetcher) FetchBatch(ctx context.Context) (domain.FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.Calls
	m.Calls++
	if len(m.Results) == 0 {
		return domain.FetchResult{}, nil
	}
	if i >= len(m.Results) {
		i = len(m.Results) - 1
	}
	var err error
	if i < len(m.Errs) {
		err = m.Errs[i]
	}
	return m.Results[i], err
}

// MockArchiveQueue is an in-memory implementation of domain.ArchiveQueue.
type MockArchiveQueue struct {
	mu         sync.Mutex
	Published  []domain.Event
	ReadResult []domain.Event
	AckedIDs   []string

	PublishErr error
	ReadErr    error
	AckErr     error
}

func (m *MockArchiveQueue) Publish(ctx context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, events...)
	return nil
}

func (m *MockArchiveQueue) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.ReadResult, nil
}

func (m *MockArchiveQueue) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedIDs = append(m.AckedIDs, messageIDs...)
	return nil
}

// MockArchiveSink is an in-memory implementation of domain.ArchiveSink.
// WriteErrCount makes the first N writes fail, for retry tests.
type MockArchiveSink struct {
	mu            sync.Mutex
	Written       []domain.Event
	WriteErr      error
	WriteErrCount int
	WriteCalls    int
}

func (m *MockArchiveSink) WriteBatch(ctx context.Context, events []domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteCalls++
	if m.WriteErr != nil && (m.WriteErrCount == 0 || m.WriteCalls <= m.WriteErrCount) {
		return m.WriteErr
	}
	m.Written = append(m.Written, events...)
	return nil
}
