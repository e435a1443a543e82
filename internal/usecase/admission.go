package usecase

import (
	"log/slog"
	"time"

	"github.com/user/eventwatch/internal/domain"
)

// AdmissionResult is the outcome of filtering one fetched batch.
type AdmissionResult struct {
	Accepted   []domain.Event
	Duplicates int
	// Gap is non-nil when the batch's coverage does not connect to the
	// previous cycle's; its value is the magnitude of the hole.
	Gap *time.Duration
}

// AdmissionFilter deduplicates fetched batches against the dedup window and
// flags coverage gaps via the continuity marker. It owns both pieces of
// state; neither survives a process restart. Not safe for concurrent use —
// the ingestion loop is its only caller.
type AdmissionFilter struct {
	window       *DedupWindow
	pollInterval time.Duration
	gapBuffer    time.Duration
	logger       *slog.Logger

	markerID   string
	markerTime time.Time
	hasMarker  bool

	now func() time.Time
}

// NewAdmissionFilter creates a filter with the given dedup horizon and gap
// detection parameters. gapBuffer is the slack beyond one poll interval
// before a time difference counts as a gap.
func NewAdmissionFilter(dedupHorizon, pollInterval, gapBuffer time.Duration, logger *slog.Logger) *AdmissionFilter {
	return &AdmissionFilter{
		window:       NewDedupWindow(dedupHorizon),
		pollInterval: pollInterval,
		gapBuffer:    gapBuffer,
		logger:       logger.With("component", "admission_filter"),
		now:          time.Now,
	}
}

// Admit processes records in upstream order: unmonitored types are
// discarded, identifiers present in the dedup window are counted as
// duplicates, everything else is accepted and marked. firstPage is the
// number of leading records that came from the batch's first fetched page.
func (f *AdmissionFilter) Admit(records []domain.RawRecord, firstPage int) AdmissionResult {
	f.window.Purge(f.now())

	res := AdmissionResult{Gap: f.detectGap(records, firstPage)}

	for _, rec := range records {
		if !domain.IsMonitored(rec.Type) {
			continue
		}
		if f.window.Seen(rec.ID) {
			res.Duplicates++
			continue
		}
		res.Accepted = append(res.Accepted, domain.Event{
			ID:        rec.ID,
			Type:      domain.EventType(rec.Type),
			Repo:      rec.Repo,
			CreatedAt: rec.CreatedAt,
			Payload:   rec.Payload,
		})
		f.window.Mark(rec.ID, rec.CreatedAt)
	}

	f.updateMarker(records, firstPage)
	return res
}

// WindowSize returns the number of identifiers currently held in the dedup
// window.
func (f *AdmissionFilter) WindowSize() int {
	return f.window.Len()
}

// detectGap compares the oldest record of the new batch's first page with
// the previous continuity marker. Records within a page arrive newest
// first, so the page's oldest record is its last one. A difference larger
// than poll interval + buffer means events scrolled past between cycles.
func (f *AdmissionFilter) detectGap(records []domain.RawRecord, firstPage int) *time.Duration {
	if !f.hasMarker || firstPage <= 0 || firstPage > len(records) {
		return nil
	}
	oldest := records[firstPage-1].CreatedAt
	delta := oldest.Sub(f.markerTime)
	if delta <= f.pollInterval+f.gapBuffer {
		return nil
	}
	f.logger.Warn("coverage gap detected",
		"gap_seconds", delta.Seconds(),
		"previous_oldest", f.markerTime,
		"current_oldest", oldest,
	)
	return &delta
}

// updateMarker records the first page's oldest record, regardless of the
// gap outcome.
func (f *AdmissionFilter) updateMarker(records []domain.RawRecord, firstPage int) {
	if firstPage <= 0 || firstPage > len(records) {
		return
	}
	oldest := records[firstPage-1]
	f.markerID = oldest.ID
	f.markerTime = oldest.CreatedAt
	f.hasMarker = true
}
