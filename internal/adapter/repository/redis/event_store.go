// Package redis implements the event store, snapshot series, and archive
// queue over Redis. Multi-index writes go through MULTI/EXEC transactions
// so an event is never partially visible.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/eventwatch/internal/domain"
)

const (
	globalIndexKey  = "events:index"
	typeIndexPrefix = "events:type:"
	repoIndexPrefix = "events:repo:"
	repoSetKey      = "events:repos"
	eventKeyPrefix  = "event:"
)

// EventStore implements domain.EventStore on Redis sorted sets. The global
// and per-type indexes map event id to created-at (unix milliseconds); the
// per-repository indexes exist for pull request events only.
type EventStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewEventStore creates a Redis-backed event store.
func NewEventStore(client *redis.Client, logger *slog.Logger) *EventStore {
	return &EventStore{
		client: client,
		logger: logger.With("component", "event_store"),
	}
}

// Insert writes the event record and all of its index entries in one
// transaction. ZADD re-scores and SET overwrites, so a duplicate insert
// cannot corrupt the indexes.
func (s *EventStore) Insert(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}

	score := float64(event.CreatedAt.UnixMilli())
	member := redis.Z{Score: score, Member: event.ID}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, globalIndexKey, member)
	pipe.ZAdd(ctx, typeIndexPrefix+string(event.Type), member)
	if event.Type == domain.TypePullRequest && event.Repo != "" {
		pipe.ZAdd(ctx, repoIndexPrefix+event.Repo, member)
		pipe.SAdd(ctx, repoSetKey, event.Repo)
	}
	pipe.Set(ctx, eventKeyPrefix+event.ID, data, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}
	return nil
}

// CountByType counts events per monitored type with created-at in
// [from, to].
func (s *EventStore) CountByType(ctx context.Context, from, to time.Time) (map[domain.EventType]int64, error) {
	min := strconv.FormatInt(from.UnixMilli(), 10)
	max := strconv.FormatInt(to.UnixMilli(), 10)

	types := domain.MonitoredTypes()
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(types))
	for i, t := range types {
		cmds[i] = pipe.ZCount(ctx, typeIndexPrefix+string(t), min, max)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}

	counts := make(map[domain.EventType]int64, len(types))
	for i, t := range types {
		counts[t] = cmds[i].Val()
	}
	return counts, nil
}

// RepoTimestamps returns the pull request timestamps for repo, ascending.
func (s *EventStore) RepoTimestamps(ctx context.Context, repo string) ([]time.Time, error) {
	members, err := s.client.ZRangeByScoreWithScores(ctx, repoIndexPrefix+repo, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("repo timestamps for %s: %w", repo, err)
	}

	times := make([]time.Time, 0, len(members))
	for _, m := range members {
		times = append(times, time.UnixMilli(int64(m.Score)))
	}
	return times, nil
}

// RepoCounts returns the pull request event count per indexed repository.
func (s *EventStore) RepoCounts(ctx context.Context) (map[string]int64, error) {
	repos, err := s.client.SMembers(ctx, repoSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list indexed repos: %w", err)
	}
	if len(repos) == 0 {
		return map[string]int64{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(repos))
	for i, repo := range repos {
		cmds[i] = pipe.ZCard(ctx, repoIndexPrefix+repo)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("repo counts: %w", err)
	}

	counts := make(map[string]int64, len(repos))
	for i, repo := range repos {
		if n := cmds[i].Val(); n > 0 {
			counts[repo] = n
		}
	}
	return counts, nil
}

// EvictBefore removes all events older than cutoff from every index and
// deletes their records in one transaction, then lazily drops repository
// index keys that became empty.
func (s *EventStore) EvictBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)

	ids, err := s.client.ZRangeByScore(ctx, globalIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired events: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	repos, err := s.client.SMembers(ctx, repoSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list indexed repos: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, globalIndexKey, "-inf", max)
	for _, t := range domain.MonitoredTypes() {
		pipe.ZRemRangeByScore(ctx, typeIndexPrefix+string(t), "-inf", max)
	}
	for _, repo := range repos {
		pipe.ZRemRangeByScore(ctx, repoIndexPrefix+repo, "-inf", max)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = eventKeyPrefix + id
	}
	pipe.Del(ctx, keys...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("evict %d events: %w", len(ids), err)
	}

	s.dropEmptyRepoIndexes(ctx, repos)
	return int64(len(ids)), nil
}

// TotalEvents returns the number of events currently retained.
func (s *EventStore) TotalEvents(ctx context.Context) (int64, error) {
	total, err := s.client.ZCard(ctx, globalIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("total events: %w", err)
	}
	return total, nil
}

func (s *EventStore) dropEmptyRepoIndexes(ctx context.Context, repos []string) {
	for _, repo := range repos {
		n, err := s.client.ZCard(ctx, repoIndexPrefix+repo).Result()
		if err != nil || n > 0 {
			continue
		}
		if err := s.client.SRem(ctx, repoSetKey, repo).Err(); err != nil {
			s.logger.Warn("failed to drop empty repo index", "repo", repo, "error", err)
		}
	}
}
