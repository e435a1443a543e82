package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/user/eventwatch/internal/domain"
)

const (
	snapshotIndexKey  = "metrics:snapshots"
	snapshotKeyPrefix = "metrics:snapshot:"
)

// SnapshotStore implements domain.SnapshotStore on Redis: one hash per
// snapshot with a TTL, indexed by timestamp in a sorted set. The TTL is a
// second line of defense; explicit trimming keeps the index honest.
type SnapshotStore struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewSnapshotStore creates a snapshot store whose entries expire after ttl.
func NewSnapshotStore(client *redis.Client, logger *slog.Logger, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		logger: logger.With("component", "snapshot_store"),
		ttl:    ttl,
	}
}

// Record stores the snapshot hash with its TTL and indexes it by timestamp
// in one transaction.
func (s *SnapshotStore) Record(ctx context.Context, snap domain.Snapshot) error {
	counts, err := json.Marshal(snap.Counts)
	if err != nil {
		return fmt.Errorf("marshal snapshot counts: %w", err)
	}

	key := snapshotKeyPrefix + uuid.NewString()
	score := float64(snap.Timestamp.UnixMilli())

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"timestamp": strconv.FormatInt(snap.Timestamp.UnixMilli(), 10),
		"counts":    counts,
		"total":     strconv.FormatInt(snap.Total, 10),
	})
	pipe.Expire(ctx, key, s.ttl)
	pipe.ZAdd(ctx, snapshotIndexKey, redis.Z{Score: score, Member: key})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

// List returns live snapshots oldest first. Keys whose hash already
// expired are skipped and removed from the index.
func (s *SnapshotStore) List(ctx context.Context) ([]domain.Snapshot, error) {
	keys, err := s.client.ZRangeByScore(ctx, snapshotIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshot keys: %w", err)
	}
	if len(keys) == 0 {
		return []domain.Snapshot{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("fetch snapshots: %w", err)
	}

	snapshots := make([]domain.Snapshot, 0, len(keys))
	for i, key := range keys {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			// Hash expired under its TTL; drop the dangling index entry.
			s.client.ZRem(ctx, snapshotIndexKey, key)
			continue
		}
		snap, err := parseSnapshot(fields)
		if err != nil {
			s.logger.Warn("skipping malformed snapshot", "key", key, "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// TrimBefore drops snapshots older than cutoff from the index and deletes
// their hashes.
func (s *SnapshotStore) TrimBefore(ctx context.Context, cutoff time.Time) error {
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)

	stale, err := s.client.ZRangeByScore(ctx, snapshotIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return fmt.Errorf("list stale snapshots: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, snapshotIndexKey, "-inf", max)
	pipe.Del(ctx, stale...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("trim snapshot series: %w", err)
	}
	return nil
}

func parseSnapshot(fields map[string]string) (domain.Snapshot, error) {
	ms, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse timestamp: %w", err)
	}
	total, err := strconv.ParseInt(fields["total"], 10, 64)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse total: %w", err)
	}
	counts := make(map[domain.EventType]int64)
	if err := json.Unmarshal([]byte(fields["counts"]), &counts); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse counts: %w", err)
	}
	return domain.Snapshot{
		Timestamp: time.UnixMilli(ms),
		Counts:    counts,
		Total:     total,
	}, nil
}
