package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/user/eventwatch/internal/domain"
)

const defaultLeaderboardMin = 2

// StatsService is the stateless query layer over the event store: windowed
// counts by type, PR inter-arrival gap statistics per repository, and the
// activity leaderboard. Safe for concurrent use.
type StatsService struct {
	store domain.EventStore
	now   func() time.Time
}

// NewStatsService creates a stats service over the given store.
func NewStatsService(store domain.EventStore) *StatsService {
	return &StatsService{store: store, now: time.Now}
}

// CountEvents counts events per monitored type with created-at within the
// last offsetMinutes. Non-positive offsets are rejected with
// domain.ErrInvalidOffset.
func (s *StatsService) CountEvents(ctx context.Context, offsetMinutes int) (*domain.TypeCountReport, error) {
	if offsetMinutes <= 0 {
		return nil, domain.ErrInvalidOffset
	}

	now := s.now()
	from := now.Add(-time.Duration(offsetMinutes) * time.Minute)

	counts, err := s.store.CountByType(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}

	report := &domain.TypeCountReport{
		Counts:     make(map[domain.EventType]int64, len(domain.MonitoredTypes())),
		TimeWindow: fmt.Sprintf("last %d minutes", offsetMinutes),
		Timestamp:  now,
	}
	for _, t := range domain.MonitoredTypes() {
		report.Counts[t] = counts[t]
		report.Total += counts[t]
	}
	return report, nil
}

// PRTimeGap computes inter-arrival gap statistics (in seconds) for pull
// request events of repo. With fewer than two qualifying events the report
// carries the insufficient-data marker and a nil average instead of an
// error.
func (s *StatsService) PRTimeGap(ctx context.Context, repo string) (*domain.PRGapReport, error) {
	times, err := s.store.RepoTimestamps(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("repo timestamps: %w", err)
	}

	report := &domain.PRGapReport{
		Repository: repo,
		TotalCount: int64(len(times)),
		Unit:       domain.GapUnit,
	}
	if len(times) < 2 {
		report.Error = domain.InsufficientData
		return report, nil
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var sum float64
	minGap := times[1].Sub(times[0]).Seconds()
	maxGap := minGap
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1]).Seconds()
		sum += gap
		if gap < minGap {
			minGap = gap
		}
		if gap > maxGap {
			maxGap = gap
		}
	}
	avg := sum / float64(len(times)-1)

	first, last := times[0], times[len(times)-1]
	report.AverageGap = &avg
	report.MinGap = &minGap
	report.MaxGap = &maxGap
	report.FirstTime = &first
	report.LastTime = &last
	return report, nil
}

// Leaderboard returns repositories whose PR event count is at least
// minCount (default 2 when non-positive), sorted by count descending with
// ties broken by repository name ascending.
func (s *StatsService) Leaderboard(ctx context.Context, minCount int) ([]domain.LeaderboardEntry, error) {
	if minCount <= 0 {
		minCount = defaultLeaderboardMin
	}

	counts, err := s.store.RepoCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("repo counts: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(counts))
	for repo, count := range counts {
		if count >= int64(minCount) {
			entries = append(entries, domain.LeaderboardEntry{Repository: repo, Count: count})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Repository < entries[j].Repository
	})
	return entries, nil
}

// StorageStats reports current retention and ingestion progress.
func (s *StatsService) StorageStats(ctx context.Context, lastFetch time.Time, interval time.Duration) (*domain.StorageStats, error) {
	total, err := s.store.TotalEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("total events: %w", err)
	}
	return &domain.StorageStats{
		TotalEventsStored: total,
		LastFetchTime:     lastFetch,
		FetchInterval:     interval.Seconds(),
	}, nil
}
