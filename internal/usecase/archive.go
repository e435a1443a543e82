package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/eventwatch/internal/domain"
)

const (
	defaultArchiveRetries = 3
	defaultArchiveBackoff = 1 * time.Second
)

// Archiver drains the archive stream into the long-term sink. Events are
// acknowledged only after a successful sink write; on persistent failure
// they stay pending and are redelivered on a later batch.
type Archiver struct {
	queue    domain.ArchiveQueue
	sink     domain.ArchiveSink
	logger   *slog.Logger
	group    string
	consumer string
	batch    int
	retries  int
	backoff  time.Duration
}

// NewArchiver creates an archive batch processor.
func NewArchiver(queue domain.ArchiveQueue, sink domain.ArchiveSink, logger *slog.Logger, group, consumer string, batchSize int) *Archiver {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Archiver{
		queue:    queue,
		sink:     sink,
		logger:   logger.With("component", "archiver"),
		group:    group,
		consumer: consumer,
		batch:    batchSize,
		retries:  defaultArchiveRetries,
		backoff:  defaultArchiveBackoff,
	}
}

// ProcessBatch reads one batch from the stream, writes it to the sink, and
// acknowledges it. Returns the number of archived events.
func (a *Archiver) ProcessBatch(ctx context.Context) (int, error) {
	events, err := a.queue.ReadBatch(ctx, a.group, a.consumer, a.batch)
	if err != nil {
		return 0, fmt.Errorf("read archive batch: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := a.writeWithRetry(ctx, events); err != nil {
		// Unacked messages are redelivered later; the sink write is
		// idempotent, so replays are safe.
		return 0, fmt.Errorf("write archive batch: %w", err)
	}

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.StreamMessageID
	}
	if err := a.queue.Acknowledge(ctx, a.group, ids...); err != nil {
		return 0, fmt.Errorf("acknowledge archive batch: %w", err)
	}

	a.logger.Debug("archived batch", "count", len(events))
	return len(events), nil
}

func (a *Archiver) writeWithRetry(ctx context.Context, events []domain.Event) error {
	var lastErr error
	for attempt := 1; attempt <= a.retries; attempt++ {
		if lastErr = a.sink.WriteBatch(ctx, events); lastErr == nil {
			return nil
		}
		a.logger.Warn("sink write failed, retrying", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(a.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
