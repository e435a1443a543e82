package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/user/eventwatch/internal/domain"
	"github.com/user/eventwatch/internal/domain/mocks"
)

func testRecorder(events *mocks.MockEventStore, snaps *mocks.MockSnapshotStore) *SnapshotRecorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats := NewStatsService(events)
	return NewSnapshotRecorder(stats, snaps, nil, logger, 10*time.Minute, 15*time.Minute, time.Minute)
}

func TestSnapshotRecorder_RecordOnce(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Snapshot captures the windowed counts", func(t *testing.T) {
		events := &mocks.MockEventStore{Events: []domain.Event{
			{ID: "1", Type: domain.TypeWatch, CreatedAt: now.Add(-time.Minute)},
			{ID: "2", Type: domain.TypeWatch, CreatedAt: now.Add(-2 * time.Minute)},
			prEvent("3", "a/b", now.Add(-3*time.Minute)),
			// Older than the 10 minute window.
			{ID: "4", Type: domain.TypeIssues, CreatedAt: now.Add(-30 * time.Minute)},
		}}
		snaps := &mocks.MockSnapshotStore{}
		r := testRecorder(events, snaps)
		r.now = func() time.Time { return now }
		r.stats.now = func() time.Time { return now }

		if err := r.RecordOnce(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(snaps.Snapshots) != 1 {
			t.Fatalf("expected 1 snapshot, got %d", len(snaps.Snapshots))
		}
		snap := snaps.Snapshots[0]
		if !snap.Timestamp.Equal(now) {
			t.Errorf("unexpected timestamp %v", snap.Timestamp)
		}
		if snap.Counts[domain.TypeWatch] != 2 || snap.Counts[domain.TypePullRequest] != 1 {
			t.Errorf("unexpected counts %v", snap.Counts)
		}
		if snap.Total != 3 {
			t.Errorf("expected total 3, got %d", snap.Total)
		}
	})

	t.Run("Stale snapshots are trimmed before recording", func(t *testing.T) {
		snaps := &mocks.MockSnapshotStore{Snapshots: []domain.Snapshot{
			{Timestamp: now.Add(-20 * time.Minute)},
			{Timestamp: now.Add(-5 * time.Minute)},
		}}
		r := testRecorder(&mocks.MockEventStore{}, snaps)
		r.now = func() time.Time { return now }

		if err := r.RecordOnce(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(snaps.Snapshots) != 2 {
			t.Fatalf("expected stale snapshot trimmed and one recorded, got %d", len(snaps.Snapshots))
		}
		for _, s := range snaps.Snapshots {
			if s.Timestamp.Before(now.Add(-15 * time.Minute)) {
				t.Errorf("snapshot at %v is older than the retention horizon", s.Timestamp)
			}
		}
	})

	t.Run("Count failure aborts without recording", func(t *testing.T) {
		events := &mocks.MockEventStore{QueryErr: errors.New("redis down")}
		snaps := &mocks.MockSnapshotStore{}
		r := testRecorder(events, snaps)

		if err := r.RecordOnce(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
		if len(snaps.Snapshots) != 0 {
			t.Errorf("expected no snapshot recorded, got %d", len(snaps.Snapshots))
		}
	})
}

func TestSnapshotRecorder_List(t *testing.T) {
	now := time.Now().UTC()

	snaps := &mocks.MockSnapshotStore{Snapshots: []domain.Snapshot{
		{Timestamp: now.Add(-20 * time.Minute), Total: 1},
		{Timestamp: now.Add(-10 * time.Minute), Total: 2},
		{Timestamp: now.Add(-1 * time.Minute), Total: 3},
	}}
	r := testRecorder(&mocks.MockEventStore{}, snaps)
	r.now = func() time.Time { return now }

	got, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected expired snapshot excluded, got %d", len(got))
	}
	if !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Error("expected snapshots ordered oldest first")
	}
}
