package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/eventwatch/internal/domain"
)

const readBlock = 2 * time.Second

// ArchiveQueue implements domain.ArchiveQueue on a Redis Stream. The
// monitor publishes admitted events; the archiver drains them through a
// consumer group.
type ArchiveQueue struct {
	client *redis.Client
	logger *slog.Logger
	stream string
}

// NewArchiveQueue creates an archive queue on the named stream.
func NewArchiveQueue(client *redis.Client, logger *slog.Logger, stream string) *ArchiveQueue {
	return &ArchiveQueue{
		client: client,
		logger: logger.With("component", "archive_queue"),
		stream: stream,
	}
}

// EnsureGroup creates the consumer group (and the stream, if missing).
// Safe to call on every startup.
func (q *ArchiveQueue) EnsureGroup(ctx context.Context, group string) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return fmt.Errorf("create consumer group %s: %w", group, err)
	}
	return nil
}

// Publish appends events to the stream in one pipeline.
func (q *ArchiveQueue) Publish(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			q.logger.Error("failed to marshal event for archive", "event_id", ev.ID, "error", err)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: q.stream,
			Values: map[string]interface{}{"payload": payload},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish to archive stream: %w", err)
	}
	return nil
}

// ReadBatch reads up to count unprocessed events for the consumer,
// populating StreamMessageID on each. Returns nil when the stream is idle.
func (q *ArchiveQueue) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.Event, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(count),
		Block:    readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read from archive stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	messages := streams[0].Messages
	events := make([]domain.Event, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			q.logger.Warn("invalid message in archive stream, skipping", "message_id", msg.ID)
			continue
		}
		var ev domain.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			q.logger.Warn("failed to unmarshal archived event, skipping", "message_id", msg.ID, "error", err)
			continue
		}
		ev.StreamMessageID = msg.ID
		events = append(events, ev)
	}
	return events, nil
}

// Acknowledge marks stream messages as processed.
func (q *ArchiveQueue) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := q.client.XAck(ctx, q.stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("acknowledge archive messages: %w", err)
	}
	return nil
}

func isBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
