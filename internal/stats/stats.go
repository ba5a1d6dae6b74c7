// Package stats computes the dashboard statistics. Everything is derived on
// demand from the alert store; nothing is cached between calls.
package stats

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

const topSourceCount = 10

type Summary struct {
	TotalAlerts        int     `json:"totalAlerts"`
	ActiveAlerts       int     `json:"activeAlerts"`
	CriticalAlerts     int     `json:"criticalAlerts"`
	HighRiskAlerts     int     `json:"highRiskAlerts"`
	RecentAlerts       int     `json:"recentAlerts"`
	RequiringAttention int     `json:"requiringAttention"`
	ResolutionRate     float64 `json:"resolutionRate"`
}

type Breakdown struct {
	ByCategory  []repository.CountBucket `json:"byCategory"`
	ByRiskLevel []repository.CountBucket `json:"byRiskLevel"`
	ByStatus    []repository.CountBucket `json:"byStatus"`
}

type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Overview struct {
	Summary    Summary                  `json:"summary"`
	Breakdown  Breakdown                `json:"breakdown"`
	Trends     []TrendPoint             `json:"trends"`
	TopSources []repository.CountBucket `json:"topSources"`
	Metadata   Metadata                 `json:"metadata"`
}

type Metadata struct {
	Days        int       `json:"days"`
	Period      string    `json:"period"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Aggregator struct {
	repo repository.StatsRepository
	now  func() time.Time
}

func NewAggregator(repo repository.StatsRepository) *Aggregator {
	return &Aggregator{repo: repo, now: time.Now}
}

// Compute assembles the full dashboard overview for the given window in days.
func (a *Aggregator) Compute(ctx context.Context, days int) (*Overview, error) {
	if days <= 0 {
		days = 30
	}
	now := a.now()
	windowStart := now.AddDate(0, 0, -days)

	total, err := a.repo.TotalAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("total alerts: %w", err)
	}
	active, err := a.repo.CountByStatus(ctx, models.AlertStatusActive)
	if err != nil {
		return nil, fmt.Errorf("active alerts: %w", err)
	}
	critical, err := a.repo.CountByRiskLevel(ctx, models.RiskLevelCritical)
	if err != nil {
		return nil, fmt.Errorf("critical alerts: %w", err)
	}
	high, err := a.repo.CountByRiskLevel(ctx, models.RiskLevelHigh)
	if err != nil {
		return nil, fmt.Errorf("high risk alerts: %w", err)
	}
	recent, err := a.repo.CountPublishedSince(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	attention, err := a.repo.CountRequiringAttention(ctx)
	if err != nil {
		return nil, fmt.Errorf("alerts requiring attention: %w", err)
	}
	resolvedWeek, err := a.repo.CountResolvedSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, fmt.Errorf("resolved this week: %w", err)
	}

	byCategory, err := a.repo.GroupByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("breakdown by category: %w", err)
	}
	byRiskLevel, err := a.repo.GroupByRiskLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("breakdown by risk level: %w", err)
	}
	byStatus, err := a.repo.GroupByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("breakdown by status: %w", err)
	}

	daily, err := a.repo.DailyCounts(ctx, windowStart)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}

	topSources, err := a.repo.TopSources(ctx, topSourceCount)
	if err != nil {
		return nil, fmt.Errorf("top sources: %w", err)
	}

	return &Overview{
		Summary: Summary{
			TotalAlerts:        total,
			ActiveAlerts:       active,
			CriticalAlerts:     critical,
			HighRiskAlerts:     high,
			RecentAlerts:       recent,
			RequiringAttention: attention,
			ResolutionRate:     resolutionRate(resolvedWeek, total),
		},
		Breakdown: Breakdown{
			ByCategory:  byCategory,
			ByRiskLevel: byRiskLevel,
			ByStatus:    byStatus,
		},
		Trends:     zeroFilledTrend(windowStart, days, daily),
		TopSources: topSources,
		Metadata: Metadata{
			Days:        days,
			Period:      fmt.Sprintf("%d days", days),
			GeneratedAt: now,
		},
	}, nil
}

// zeroFilledTrend produces exactly one point per calendar day in the window,
// zero for days without alerts.
func zeroFilledTrend(start time.Time, days int, counts map[string]int) []TrendPoint {
	trend := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		trend = append(trend, TrendPoint{Date: day, Count: counts[day]})
	}
	return trend
}

// resolutionRate is alerts resolved in the last 7 days over all alerts, as a
// percentage with one decimal place.
func resolutionRate(resolved, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(resolved)/float64(total)*1000) / 10
}
