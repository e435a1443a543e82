package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/eventwatch/internal/adapter/metrics"
	"github.com/user/eventwatch/internal/domain"
)

// SnapshotRecorder periodically materializes the windowed count into a
// short-retention series for trend display. Snapshots are immutable once
// recorded and expire with the retention horizon.
type SnapshotRecorder struct {
	stats     *StatsService
	store     domain.SnapshotStore
	m         *metrics.PipelineMetrics
	logger    *slog.Logger
	window    time.Duration
	retention time.Duration
	interval  time.Duration

	now func() time.Time
}

// NewSnapshotRecorder creates a recorder materializing the last `window`
// minutes on every `interval`, trimming the series to `retention`. m may be
// nil.
func NewSnapshotRecorder(
	stats *StatsService,
	store domain.SnapshotStore,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
	window, retention, interval time.Duration,
) *SnapshotRecorder {
	return &SnapshotRecorder{
		stats:     stats,
		store:     store,
		m:         m,
		logger:    logger.With("component", "snapshot_recorder"),
		window:    window,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Run records snapshots on a fixed cadence until ctx is cancelled.
func (r *SnapshotRecorder) Run(ctx context.Context) {
	r.logger.Info("snapshot recorder started", "interval", r.interval.String(), "window", r.window.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("snapshot recorder stopped")
			return
		case <-ticker.C:
			if err := r.RecordOnce(ctx); err != nil {
				r.logger.Error("failed to record snapshot", "error", err)
			}
		}
	}
}

// RecordOnce materializes one snapshot and trims the series to the
// retention horizon.
func (r *SnapshotRecorder) RecordOnce(ctx context.Context) error {
	now := r.now()
	if err := r.store.TrimBefore(ctx, now.Add(-r.retention)); err != nil {
		return fmt.Errorf("trim snapshot series: %w", err)
	}

	report, err := r.stats.CountEvents(ctx, int(r.window.Minutes()))
	if err != nil {
		return fmt.Errorf("compute windowed count: %w", err)
	}

	snap := domain.Snapshot{
		Timestamp: now,
		Counts:    report.Counts,
		Total:     report.Total,
	}
	if err := r.store.Record(ctx, snap); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	if r.m != nil {
		r.m.SnapshotsTotal.Inc()
	}
	return nil
}

// List returns all live snapshots oldest first, trimming expired entries
// beforehand.
func (r *SnapshotRecorder) List(ctx context.Context) ([]domain.Snapshot, error) {
	if err := r.store.TrimBefore(ctx, r.now().Add(-r.retention)); err != nil {
		return nil, fmt.Errorf("trim snapshot series: %w", err)
	}
	return r.store.List(ctx)
}
