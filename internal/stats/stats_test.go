package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

// mockStatsRepo implements repository.StatsRepository with canned values.
type mockStatsRepo struct {
	total     int
	active    int
	critical  int
	high      int
	recent    int
	attention int
	resolved  int
	daily     map[string]int
}

func (m *mockStatsRepo) TotalAlerts(ctx context.Context) (int, error) { return m.total, nil }

func (m *mockStatsRepo) CountByStatus(ctx context.Context, s models.AlertStatus) (int, error) {
	return m.active, nil
}

func (m *mockStatsRepo) CountByRiskLevel(ctx context.Context, rl models.RiskLevel) (int, error) {
	if rl == models.RiskLevelCritical {
		return m.critical, nil
	}
	return m.high, nil
}

func (m *mockStatsRepo) CountPublishedSince(ctx context.Context, since time.Time) (int, error) {
	return m.recent, nil
}

func (m *mockStatsRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return m.recent, nil
}

func (m *mockStatsRepo) CountRequiringAttention(ctx context.Context) (int, error) {
	return m.attention, nil
}

func (m *mockStatsRepo) CountResolvedSince(ctx context.Context, since time.Time) (int, error) {
	return m.resolved, nil
}

func (m *mockStatsRepo) GroupByCategory(ctx context.Context) ([]repository.CountBucket, error) {
	return []repository.CountBucket{{Key: "compliance_news", Count: m.total}}, nil
}

func (m *mockStatsRepo) GroupByRiskLevel(ctx context.Context) ([]repository.CountBucket, error) {
	return nil, nil
}

func (m *mockStatsRepo) GroupByStatus(ctx context.Context) ([]repository.CountBucket, error) {
	return nil, nil
}

func (m *mockStatsRepo) DailyCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	return m.daily, nil
}

func (m *mockStatsRepo) TopSources(ctx context.Context, n int) ([]repository.CountBucket, error) {
	return []repository.CountBucket{{Key: "Wire A", Count: 3}}, nil
}

func fixedAggregator(repo repository.StatsRepository, now time.Time) *Aggregator {
	a := NewAggregator(repo)
	a.now = func() time.Time { return now }
	return a
}

func TestCompute_TrendZeroFill(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := &mockStatsRepo{
		total: 5,
		daily: map[string]int{
			"2026-08-25": 2,
			"2026-08-28": 3,
		},
	}

	overview, err := fixedAggregator(repo, now).Compute(context.Background(), 7)
	require.NoError(t, err)

	// Exactly one entry per calendar day, zero-filled, never sparse.
	require.Len(t, overview.Trends, 7)
	assert.Equal(t, "2026-08-22", overview.Trends[0].Date)
	assert.Equal(t, "2026-08-28", overview.Trends[6].Date)

	byDate := map[string]int{}
	for _, p := range overview.Trends {
		byDate[p.Date] = p.Count
	}
	assert.Equal(t, 2, byDate["2026-08-25"])
	assert.Equal(t, 3, byDate["2026-08-28"])
	assert.Equal(t, 0, byDate["2026-08-23"])
}

func TestCompute_ResolutionRate(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := &mockStatsRepo{total: 3, resolved: 1}

	overview, err := fixedAggregator(repo, now).Compute(context.Background(), 30)
	require.NoError(t, err)

	// 1/3 as a percentage, one decimal place.
	assert.Equal(t, 33.3, overview.Summary.ResolutionRate)
}

func TestCompute_EmptyStore(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	repo := &mockStatsRepo{}

	overview, err := fixedAggregator(repo, now).Compute(context.Background(), 30)
	require.NoError(t, err)

	assert.Zero(t, overview.Summary.TotalAlerts)
	assert.Zero(t, overview.Summary.ResolutionRate)
	assert.Len(t, overview.Trends, 30)
}

func TestCompute_DefaultsWindow(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	overview, err := fixedAggregator(&mockStatsRepo{}, now).Compute(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 30, overview.Metadata.Days)
	assert.Equal(t, "30 days", overview.Metadata.Period)
}
