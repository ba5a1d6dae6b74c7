package repository

import (
	"context"
	"errors"
	"time"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

// ErrNotFound is returned by lookups for ids that do not exist.
var ErrNotFound = errors.New("not found")

// AlertFilter drives the paginated alert listing. Zero values mean
// "no constraint".
type AlertFilter struct {
	Category       string
	RiskLevel      string
	Status         string
	Search         string // matched against title, description and source
	SortBy         string // publishedAt | createdAt | priority | riskLevel | title
	SortOrder      string // asc | desc
	PublishedSince *time.Time
	Limit          int
	Offset         int
}

type AlertRepository interface {
	Create(ctx context.Context, a *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	Update(ctx context.Context, a *models.Alert) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f AlertFilter) ([]models.Alert, int, error)

	// FindByTitleOrSource is the ingestion dedup lookup: exact title match or
	// exact source-as-URL match. Returns (nil, nil) when no match exists.
	FindByTitleOrSource(ctx context.Context, title, url string) (*models.Alert, error)

	// ListForDigest returns Active alerts published since the cutoff, ordered
	// by priority ascending then publishedAt descending, capped at limit.
	ListForDigest(ctx context.Context, since time.Time, limit int) ([]models.Alert, error)

	// PurgeScraped deletes alerts older than the cutoff whose metadata marks
	// them as news-scraping output. Returns the number of rows removed.
	PurgeScraped(ctx context.Context, before time.Time) (int64, error)
}

type AnalysisRepository interface {
	UpsertAnalysis(ctx context.Context, a *models.AlertAnalysis) error
	GetAnalysisByAlertID(ctx context.Context, alertID string) (*models.AlertAnalysis, error)
}

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// ListUsersWithEmail returns every user with a non-empty email address.
	ListUsersWithEmail(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int, error)
}

type VendorRepository interface {
	CreateVendor(ctx context.Context, v *models.Vendor) error
	ListVendors(ctx context.Context) ([]models.Vendor, error)
}

type RegulatoryBodyRepository interface {
	CreateRegulatoryBody(ctx context.Context, b *models.RegulatoryBody) error
	ListRegulatoryBodies(ctx context.Context) ([]models.RegulatoryBody, error)
}

type EmailDeliveryRepository interface {
	CreateDelivery(ctx context.Context, d *models.EmailDelivery) error

	// MarkDeliveryResult performs the pending -> sent|failed transition.
	// errMsg is recorded only for failures.
	MarkDeliveryResult(ctx context.Context, id string, status models.DeliveryStatus, errMsg string) error

	// ListPendingDeliveries returns up to limit pending deliveries of the
	// given type, oldest first.
	ListPendingDeliveries(ctx context.Context, emailType string, limit int) ([]models.EmailDelivery, error)

	CountDeliveriesSince(ctx context.Context, since time.Time) (int, error)

	// DeliveryStatusCounts returns delivery counts grouped by (type, status)
	// since the given time, for the admin email-stats view.
	DeliveryStatusCounts(ctx context.Context, since time.Time) ([]DeliveryCount, error)
}

type DeliveryCount struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type MonitoringLogRepository interface {
	CreateLog(ctx context.Context, l *models.MonitoringLog) error
	ListRecentLogs(ctx context.Context, limit int) ([]models.MonitoringLog, error)
}

// CountBucket is one row of a group-by breakdown.
type CountBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// StatsRepository is the read-side surface behind the dashboard aggregator.
// All values are recomputed per call; nothing is cached.
type StatsRepository interface {
	TotalAlerts(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.AlertStatus) (int, error)
	CountByRiskLevel(ctx context.Context, rl models.RiskLevel) (int, error)
	CountPublishedSince(ctx context.Context, since time.Time) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)

	// CountRequiringAttention counts Active alerts at Critical or High risk.
	CountRequiringAttention(ctx context.Context) (int, error)

	// CountResolvedSince counts alerts whose status is Resolved and whose last
	// update falls after the cutoff.
	CountResolvedSince(ctx context.Context, since time.Time) (int, error)

	GroupByCategory(ctx context.Context) ([]CountBucket, error)
	GroupByRiskLevel(ctx context.Context) ([]CountBucket, error)
	GroupByStatus(ctx context.Context) ([]CountBucket, error)

	// DailyCounts returns per-calendar-day alert counts (key "2006-01-02")
	// for alerts published since the cutoff. Days without alerts are absent;
	// the aggregator zero-fills.
	DailyCounts(ctx context.Context, since time.Time) (map[string]int, error)

	TopSources(ctx context.Context, n int) ([]CountBucket, error)
}
