package usecase

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/user/eventwatch/internal/domain"
)

func testFilter(t *testing.T) *AdmissionFilter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdmissionFilter(30*time.Minute, 1*time.Second, 1*time.Second, logger)
}

func rawRecord(id, typ, repo string, at time.Time) domain.RawRecord {
	return domain.RawRecord{ID: id, Type: typ, Repo: repo, CreatedAt: at}
}

func TestAdmissionFilter_Admit(t *testing.T) {
	now := time.Now().UTC()

	t.Run("Unmonitored types are discarded", func(t *testing.T) {
		f := testFilter(t)
		batch := []domain.RawRecord{
			rawRecord("1", "PushEvent", "a/b", now),
			rawRecord("2", "WatchEvent", "a/b", now),
			rawRecord("3", "ForkEvent", "a/b", now),
		}

		res := f.Admit(batch, len(batch))

		if len(res.Accepted) != 1 {
			t.Fatalf("expected 1 accepted, got %d", len(res.Accepted))
		}
		if res.Accepted[0].ID != "2" {
			t.Errorf("expected event 2, got %s", res.Accepted[0].ID)
		}
		if res.Duplicates != 0 {
			t.Errorf("expected 0 duplicates, got %d", res.Duplicates)
		}
	})

	t.Run("Repeated batch yields zero accepted", func(t *testing.T) {
		f := testFilter(t)
		batch := []domain.RawRecord{
			rawRecord("1", "WatchEvent", "a/b", now),
			rawRecord("2", "PullRequestEvent", "a/b", now),
			rawRecord("3", "IssuesEvent", "c/d", now),
		}

		first := f.Admit(batch, len(batch))
		if len(first.Accepted) != 3 {
			t.Fatalf("expected 3 accepted on first pass, got %d", len(first.Accepted))
		}

		second := f.Admit(batch, len(batch))
		if len(second.Accepted) != 0 {
			t.Errorf("expected 0 accepted on repeat, got %d", len(second.Accepted))
		}
		if second.Duplicates != 3 {
			t.Errorf("expected 3 duplicates, got %d", second.Duplicates)
		}
	})

	t.Run("Identifiers past the horizon are re-admittable", func(t *testing.T) {
		f := testFilter(t)
		old := []domain.RawRecord{rawRecord("1", "WatchEvent", "a/b", now.Add(-31*time.Minute))}

		if res := f.Admit(old, 1); len(res.Accepted) != 1 {
			t.Fatalf("expected initial admission, got %d accepted", len(res.Accepted))
		}
		// The entry's created-at is already past the horizon, so the
		// pre-admission purge drops it.
		if res := f.Admit(old, 1); len(res.Accepted) != 1 {
			t.Errorf("expected re-admission after horizon, got %d accepted", len(res.Accepted))
		}
	})

	t.Run("Accepted events carry the record fields", func(t *testing.T) {
		f := testFilter(t)
		batch := []domain.RawRecord{{
			ID:        "42",
			Type:      "PullRequestEvent",
			Repo:      "octo/kit",
			CreatedAt: now,
			Payload:   []byte(`{"action":"opened"}`),
		}}

		res := f.Admit(batch, 1)

		if len(res.Accepted) != 1 {
			t.Fatalf("expected 1 accepted, got %d", len(res.Accepted))
		}
		ev := res.Accepted[0]
		if ev.Type != domain.TypePullRequest || ev.Repo != "octo/kit" || !ev.CreatedAt.Equal(now) {
			t.Errorf("unexpected event fields: %+v", ev)
		}
		if string(ev.Payload) != `{"action":"opened"}` {
			t.Errorf("payload not retained: %s", ev.Payload)
		}
	})
}

func TestAdmissionFilter_GapDetection(t *testing.T) {
	base := time.Now().UTC()

	// Batches arrive newest first; the first page's oldest record is its
	// last element.
	cycleBatch := func(oldest time.Time) []domain.RawRecord {
		return []domain.RawRecord{
			rawRecord("n-"+oldest.String(), "WatchEvent", "a/b", oldest.Add(500*time.Millisecond)),
			rawRecord("o-"+oldest.String(), "WatchEvent", "a/b", oldest),
		}
	}

	t.Run("No gap within interval plus buffer", func(t *testing.T) {
		f := testFilter(t) // interval 1s, buffer 1s
		f.Admit(cycleBatch(base), 2)

		res := f.Admit(cycleBatch(base.Add(2*time.Second)), 2)
		if res.Gap != nil {
			t.Errorf("expected no gap, got %s", *res.Gap)
		}
	})

	t.Run("Gap beyond interval plus buffer is reported with magnitude", func(t *testing.T) {
		f := testFilter(t)
		f.Admit(cycleBatch(base), 2)

		res := f.Admit(cycleBatch(base.Add(5*time.Second)), 2)
		if res.Gap == nil {
			t.Fatal("expected a gap to be detected")
		}
		if *res.Gap != 5*time.Second {
			t.Errorf("expected gap of 5s, got %s", *res.Gap)
		}
	})

	t.Run("First cycle never reports a gap", func(t *testing.T) {
		f := testFilter(t)
		res := f.Admit(cycleBatch(base), 2)
		if res.Gap != nil {
			t.Error("no marker yet, gap must be nil")
		}
	})

	t.Run("Marker updates even when a gap fires", func(t *testing.T) {
		f := testFilter(t)
		f.Admit(cycleBatch(base), 2)
		f.Admit(cycleBatch(base.Add(10*time.Second)), 2)

		// Next cycle is continuous with the updated marker, so no gap.
		res := f.Admit(cycleBatch(base.Add(11*time.Second)), 2)
		if res.Gap != nil {
			t.Errorf("expected no gap after marker update, got %s", *res.Gap)
		}
	})

	t.Run("Empty batch leaves the marker untouched", func(t *testing.T) {
		f := testFilter(t)
		f.Admit(cycleBatch(base), 2)
		f.Admit(nil, 0)

		res := f.Admit(cycleBatch(base.Add(5*time.Second)), 2)
		if res.Gap == nil {
			t.Error("expected gap against the original marker")
		}
	})
}
