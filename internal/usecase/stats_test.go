package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/eventwatch/internal/domain"
	"github.com/user/eventwatch/internal/domain/mocks"
)

func prEvent(id, repo string, at time.Time) domain.Event {
	return domain.Event{ID: id, Type: domain.TypePullRequest, Repo: repo, CreatedAt: at}
}

func TestStatsService_CountEvents(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Rejects non-positive offsets", func(t *testing.T) {
		svc := NewStatsService(&mocks.MockEventStore{})
		for _, offset := range []int{0, -1, -10} {
			if _, err := svc.CountEvents(context.Background(), offset); !errors.Is(err, domain.ErrInvalidOffset) {
				t.Errorf("offset %d: expected ErrInvalidOffset, got %v", offset, err)
			}
		}
	})

	t.Run("Total equals the sum of per-type counts", func(t *testing.T) {
		store := &mocks.MockEventStore{Events: []domain.Event{
			{ID: "1", Type: domain.TypeWatch, CreatedAt: now.Add(-2 * time.Minute)},
			{ID: "2", Type: domain.TypeWatch, CreatedAt: now.Add(-3 * time.Minute)},
			{ID: "3", Type: domain.TypeIssues, CreatedAt: now.Add(-4 * time.Minute)},
			prEvent("4", "a/b", now.Add(-1*time.Minute)),
			// Outside the window.
			{ID: "5", Type: domain.TypeWatch, CreatedAt: now.Add(-20 * time.Minute)},
		}}
		svc := NewStatsService(store)
		svc.now = func() time.Time { return now }

		report, err := svc.CountEvents(context.Background(), 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if report.Counts[domain.TypeWatch] != 2 {
			t.Errorf("expected 2 watch events, got %d", report.Counts[domain.TypeWatch])
		}
		if report.Counts[domain.TypeIssues] != 1 {
			t.Errorf("expected 1 issues event, got %d", report.Counts[domain.TypeIssues])
		}
		if report.Counts[domain.TypePullRequest] != 1 {
			t.Errorf("expected 1 pr event, got %d", report.Counts[domain.TypePullRequest])
		}

		var sum int64
		for _, n := range report.Counts {
			sum += n
		}
		if report.Total != sum {
			t.Errorf("total %d does not equal per-type sum %d", report.Total, sum)
		}
	})

	t.Run("All monitored types present even when empty", func(t *testing.T) {
		svc := NewStatsService(&mocks.MockEventStore{})

		report, err := svc.CountEvents(context.Background(), 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, typ := range domain.MonitoredTypes() {
			if _, ok := report.Counts[typ]; !ok {
				t.Errorf("missing type %s in counts", typ)
			}
		}
		if report.Total != 0 {
			t.Errorf("expected zero total, got %d", report.Total)
		}
	})

	t.Run("Store error is propagated", func(t *testing.T) {
		store := &mocks.MockEventStore{QueryErr: errors.New("redis down")}
		svc := NewStatsService(store)
		if _, err := svc.CountEvents(context.Background(), 5); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestStatsService_PRTimeGap(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Insufficient data with zero events", func(t *testing.T) {
		svc := NewStatsService(&mocks.MockEventStore{})

		report, err := svc.PRTimeGap(context.Background(), "a/b")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Error != domain.InsufficientData {
			t.Errorf("expected insufficient data marker, got %q", report.Error)
		}
		if report.AverageGap != nil {
			t.Error("expected nil average gap")
		}
		if report.TotalCount != 0 {
			t.Errorf("expected 0 count, got %d", report.TotalCount)
		}
	})

	t.Run("Insufficient data with one event", func(t *testing.T) {
		store := &mocks.MockEventStore{Events: []domain.Event{prEvent("1", "a/b", t0)}}
		svc := NewStatsService(store)

		report, err := svc.PRTimeGap(context.Background(), "a/b")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Error != domain.InsufficientData || report.AverageGap != nil {
			t.Errorf("expected insufficient data shape, got %+v", report)
		}
		if report.TotalCount != 1 {
			t.Errorf("expected count 1, got %d", report.TotalCount)
		}
	})

	t.Run("Gap statistics in seconds", func(t *testing.T) {
		store := &mocks.MockEventStore{Events: []domain.Event{
			prEvent("1", "a/b", t0),
			prEvent("2", "a/b", t0.Add(60*time.Second)),
			prEvent("3", "a/b", t0.Add(180*time.Second)),
			// Different repo and non-PR events must not contribute.
			prEvent("4", "c/d", t0.Add(30*time.Second)),
			{ID: "5", Type: domain.TypeWatch, Repo: "a/b", CreatedAt: t0.Add(10 * time.Second)},
		}}
		svc := NewStatsService(store)

		report, err := svc.PRTimeGap(context.Background(), "a/b")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if report.TotalCount != 3 {
			t.Errorf("expected 3 events, got %d", report.TotalCount)
		}
		if report.AverageGap == nil || *report.AverageGap != 90 {
			t.Errorf("expected average gap 90s, got %v", report.AverageGap)
		}
		if report.MinGap == nil || *report.MinGap != 60 {
			t.Errorf("expected min gap 60s, got %v", report.MinGap)
		}
		if report.MaxGap == nil || *report.MaxGap != 120 {
			t.Errorf("expected max gap 120s, got %v", report.MaxGap)
		}
		if report.Unit != domain.GapUnit {
			t.Errorf("expected unit %q, got %q", domain.GapUnit, report.Unit)
		}
		if report.FirstTime == nil || !report.FirstTime.Equal(t0) {
			t.Errorf("unexpected first time %v", report.FirstTime)
		}
		if report.LastTime == nil || !report.LastTime.Equal(t0.Add(180*time.Second)) {
			t.Errorf("unexpected last time %v", report.LastTime)
		}
	})
}

func TestStatsService_Leaderboard(t *testing.T) {
	t0 := time.Now().UTC()

	store := &mocks.MockEventStore{Events: []domain.Event{
		prEvent("1", "busy/repo", t0),
		prEvent("2", "busy/repo", t0.Add(time.Second)),
		prEvent("3", "busy/repo", t0.Add(2*time.Second)),
		prEvent("4", "aaa/tied", t0),
		prEvent("5", "aaa/tied", t0.Add(time.Second)),
		prEvent("6", "bbb/tied", t0),
		prEvent("7", "bbb/tied", t0.Add(time.Second)),
		prEvent("8", "quiet/repo", t0),
	}}
	svc := NewStatsService(store)

	t.Run("Threshold excludes low-activity repos", func(t *testing.T) {
		entries, err := svc.Leaderboard(context.Background(), 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, e := range entries {
			if e.Count < 2 {
				t.Errorf("repo %s with count %d should be excluded", e.Repository, e.Count)
			}
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
	})

	t.Run("Sorted descending with name tie-break", func(t *testing.T) {
		entries, err := svc.Leaderboard(context.Background(), 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := []string{"busy/repo", "aaa/tied", "bbb/tied"}
		for i, e := range entries {
			if e.Repository != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], e.Repository)
			}
		}
	})

	t.Run("Non-positive threshold falls back to default", func(t *testing.T) {
		entries, err := svc.Leaderboard(context.Background(), 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(entries) != 3 {
			t.Errorf("expected default threshold of 2 to apply, got %d entries", len(entries))
		}
	})
}

func TestStatsService_StorageStats(t *testing.T) {
	now := time.Now().UTC()
	store := &mocks.MockEventStore{Events: []domain.Event{
		prEvent("1", "a/b", now),
		prEvent("2", "a/b", now),
	}}
	svc := NewStatsService(store)

	stats, err := svc.StorageStats(context.Background(), now, time.Second)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stats.TotalEventsStored != 2 {
		t.Errorf("expected 2 stored events, got %d", stats.TotalEventsStored)
	}
	if stats.FetchInterval != 1 {
		t.Errorf("expected 1s interval, got %v", stats.FetchInterval)
	}
	if !stats.LastFetchTime.Equal(now) {
		t.Errorf("unexpected last fetch time %v", stats.LastFetchTime)
	}
}
