package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/user/eventwatch/internal/adapter/metrics"
	"github.com/user/eventwatch/internal/domain"
)

// Collector is the ingestion loop: it drives the fetcher and admission
// filter into the event store on a fixed interval until cancelled. It is a
// single logical worker — cycle N+1 never starts before cycle N completes —
// and it is the only writer to the event store.
type Collector struct {
	fetcher   domain.BatchFetcher
	filter    *AdmissionFilter
	store     domain.EventStore
	queue     domain.ArchiveQueue // nil when archiving is disabled
	m         *metrics.PipelineMetrics
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration

	lastFetchNano atomic.Int64
}

// NewCollector creates the ingestion loop. queue and m may be nil.
func NewCollector(
	fetcher domain.BatchFetcher,
	filter *AdmissionFilter,
	store domain.EventStore,
	queue domain.ArchiveQueue,
	m *metrics.PipelineMetrics,
	logger *slog.Logger,
	interval, retention time.Duration,
) *Collector {
	return &Collector{
		fetcher:   fetcher,
		filter:    filter,
		store:     store,
		queue:     queue,
		m:         m,
		logger:    logger.With("component", "collector"),
		interval:  interval,
		retention: retention,
	}
}

// Run executes fetch-and-admit cycles until ctx is cancelled. A failing
// cycle is logged and swallowed; only cancellation stops the loop.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("collector started", "interval", c.interval.String(), "retention", c.retention.String())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopped")
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

// Interval returns the fixed cycle cadence.
func (c *Collector) Interval() time.Duration {
	return c.interval
}

// LastFetchTime returns when the last cycle contacted the feed; zero before
// the first cycle.
func (c *Collector) LastFetchTime() time.Time {
	nano := c.lastFetchNano.Load()
	if nano == 0 {
		return time.Time{}
	}
	return time.Unix(0, nano)
}

func (c *Collector) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cycle panicked", "panic", r)
		}
	}()

	start := time.Now()
	defer func() {
		if c.m != nil {
			c.m.CycleDuration.Observe(time.Since(start).Seconds())
		}
	}()

	res, err := c.fetcher.FetchBatch(ctx)
	c.lastFetchNano.Store(start.UnixNano())
	if err != nil {
		// Pages fetched before the failure are still processed; the cycle
		// is simply not continued past them.
		c.logger.Warn("fetch aborted mid-cycle", "error", err, "records", len(res.Records))
		if c.m != nil {
			c.m.FetchErrors.Inc()
		}
	}
	if c.m != nil && res.QuotaRemaining > 0 {
		c.m.QuotaRemaining.Set(float64(res.QuotaRemaining))
	}

	adm := c.filter.Admit(res.Records, res.FirstPage)
	if adm.Gap != nil && c.m != nil {
		c.m.GapsDetected.Inc()
	}
	if c.m != nil {
		c.m.DuplicatesTotal.Add(float64(adm.Duplicates))
	}

	inserted := c.insertAccepted(ctx, adm.Accepted)

	if c.queue != nil && len(adm.Accepted) > 0 {
		// Best effort: the archive is a secondary sink and must never fail
		// a cycle.
		if err := c.queue.Publish(ctx, adm.Accepted); err != nil {
			c.logger.Warn("failed to publish events to archive stream", "error", err)
		}
	}

	removed, err := c.store.EvictBefore(ctx, start.Add(-c.retention))
	if err != nil {
		c.logger.Error("eviction failed", "error", err)
	} else if c.m != nil {
		c.m.EvictedTotal.Add(float64(removed))
	}

	if c.m != nil {
		if total, err := c.store.TotalEvents(ctx); err == nil {
			c.m.EventsStored.Set(float64(total))
		}
	}

	c.logger.Debug("cycle complete",
		"fetched", len(res.Records),
		"accepted", len(adm.Accepted),
		"inserted", inserted,
		"duplicates", adm.Duplicates,
		"evicted", removed,
		"truncated", res.Truncated,
	)
}

// insertAccepted stores accepted events one by one. A storage failure skips
// that event only.
func (c *Collector) insertAccepted(ctx context.Context, events []domain.Event) int {
	inserted := 0
	for _, ev := range events {
		if err := c.store.Insert(ctx, ev); err != nil {
			c.logger.Error("failed to insert event", "error", err, "event_id", ev.ID)
			if c.m != nil {
				c.m.StorageErrors.Inc()
			}
			continue
		}
		inserted++
		if c.m != nil {
			c.m.EventsAdmitted.WithLabelValues(string(ev.Type)).Inc()
		}
	}
	return inserted
}
