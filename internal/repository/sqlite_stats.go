package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

func (s *SQLiteDB) TotalAlerts(ctx context.Context) (int, error) {
	return s.countAlerts(ctx, nil)
}

func (s *SQLiteDB) CountByStatus(ctx context.Context, status models.AlertStatus) (int, error) {
	return s.countAlerts(ctx, sq.Eq{"status": string(status)})
}

func (s *SQLiteDB) CountByRiskLevel(ctx context.Context, rl models.RiskLevel) (int, error) {
	return s.countAlerts(ctx, sq.Eq{"risk_level": string(rl)})
}

func (s *SQLiteDB) CountPublishedSince(ctx context.Context, since time.Time) (int, error) {
	return s.countAlerts(ctx, sq.GtOrEq{"published_at": since})
}

func (s *SQLiteDB) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return s.countAlerts(ctx, sq.GtOrEq{"created_at": since})
}

func (s *SQLiteDB) CountRequiringAttention(ctx context.Context) (int, error) {
	return s.countAlerts(ctx, sq.And{
		sq.Eq{"risk_level": []string{string(models.RiskLevelCritical), string(models.RiskLevelHigh)}},
		sq.Eq{"status": string(models.AlertStatusActive)},
	})
}

func (s *SQLiteDB) CountResolvedSince(ctx context.Context, since time.Time) (int, error) {
	return s.countAlerts(ctx, sq.And{
		sq.Eq{"status": string(models.AlertStatusResolved)},
		sq.GtOrEq{"updated_at": since},
	})
}

func (s *SQLiteDB) countAlerts(ctx context.Context, where sq.Sqlizer) (int, error) {
	builder := sq.Select("COUNT(*)").From("alerts")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) GroupByCategory(ctx context.Context) ([]CountBucket, error) {
	return s.groupAlerts(ctx, "category", "category ASC")
}

func (s *SQLiteDB) GroupByRiskLevel(ctx context.Context) ([]CountBucket, error) {
	return s.groupAlerts(ctx, "risk_level", "risk_level DESC")
}

func (s *SQLiteDB) GroupByStatus(ctx context.Context) ([]CountBucket, error) {
	return s.groupAlerts(ctx, "status", "status ASC")
}

func (s *SQLiteDB) groupAlerts(ctx context.Context, column, orderBy string) ([]CountBucket, error) {
	query, args, err := sq.Select(column, "COUNT(*)").
		From("alerts").
		GroupBy(column).
		OrderBy(orderBy).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build group query: %w", err)
	}
	return s.queryBuckets(ctx, query, args...)
}

func (s *SQLiteDB) DailyCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	// published_at serializes with a leading YYYY-MM-DD in every storage
	// format the driver uses, so a prefix take yields the calendar day.
	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(published_at, 1, 10) AS day, COUNT(*)
		 FROM alerts
		 WHERE published_at >= ?
		 GROUP BY day`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			day string
			n   int
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		counts[day] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteDB) TopSources(ctx context.Context, n int) ([]CountBucket, error) {
	query, args, err := sq.Select("source", "COUNT(*) AS cnt").
		From("alerts").
		GroupBy("source").
		OrderBy("cnt DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top sources query: %w", err)
	}
	return s.queryBuckets(ctx, query, args...)
}

func (s *SQLiteDB) queryBuckets(ctx context.Context, query string, args ...any) ([]CountBucket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("group query: %w", err)
	}
	defer rows.Close()

	var buckets []CountBucket
	for rows.Next() {
		var b CountBucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
