package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

var (
	_ AlertRepository          = (*SQLiteDB)(nil)
	_ AnalysisRepository       = (*SQLiteDB)(nil)
	_ UserRepository           = (*SQLiteDB)(nil)
	_ VendorRepository         = (*SQLiteDB)(nil)
	_ RegulatoryBodyRepository = (*SQLiteDB)(nil)
	_ EmailDeliveryRepository  = (*SQLiteDB)(nil)
	_ MonitoringLogRepository  = (*SQLiteDB)(nil)
	_ StatsRepository          = (*SQLiteDB)(nil)
)

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			raw_content TEXT,
			source TEXT NOT NULL,
			category TEXT NOT NULL,
			subcategory TEXT,
			risk_level TEXT NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			priority INTEGER NOT NULL,
			tags TEXT,
			metadata TEXT,
			published_at DATETIME NOT NULL,
			expires_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alert_analyses (
			id TEXT PRIMARY KEY,
			alert_id TEXT NOT NULL UNIQUE,
			summary TEXT NOT NULL,
			key_requirements TEXT,
			recommendations TEXT,
			risk_factors TEXT,
			deadlines TEXT,
			model_version TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (alert_id) REFERENCES alerts(id)
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT,
			email TEXT,
			timezone TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS vendors (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			website TEXT,
			criticality TEXT NOT NULL,
			monitored INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS regulatory_bodies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			acronym TEXT,
			jurisdiction TEXT NOT NULL,
			type TEXT NOT NULL,
			website TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS email_deliveries (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			recipient TEXT NOT NULL,
			subject TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			sent_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS monitoring_logs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			source_id TEXT,
			status TEXT NOT NULL,
			message TEXT NOT NULL,
			response_time INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_published_at ON alerts(published_at);
		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
		CREATE INDEX IF NOT EXISTS idx_alerts_risk_level ON alerts(risk_level);
		CREATE INDEX IF NOT EXISTS idx_alerts_title ON alerts(title);
		CREATE INDEX IF NOT EXISTS idx_deliveries_status ON email_deliveries(status, type);
		CREATE INDEX IF NOT EXISTS idx_logs_created_at ON monitoring_logs(created_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const alertColumns = `id, title, description, raw_content, source, category, subcategory,
	risk_level, severity, status, priority, tags, metadata,
	published_at, expires_at, created_at, updated_at`

func (s *SQLiteDB) Create(ctx context.Context, a *models.Alert) error {
	query := `INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Title, a.Description, nullStr(a.RawContent), a.Source, a.Category,
		nullStr(a.Subcategory), string(a.RiskLevel), string(a.Severity), string(a.Status),
		a.Priority, a.Tags, a.Metadata, a.PublishedAt, nullTime(a.ExpiresAt),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *SQLiteDB) Update(ctx context.Context, a *models.Alert) error {
	a.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET
			title = ?, description = ?, raw_content = ?, source = ?, category = ?,
			subcategory = ?, risk_level = ?, severity = ?, status = ?, priority = ?,
			tags = ?, metadata = ?, published_at = ?, expires_at = ?, updated_at = ?
		WHERE id = ?`,
		a.Title, a.Description, nullStr(a.RawContent), a.Source, a.Category,
		nullStr(a.Subcategory), string(a.RiskLevel), string(a.Severity), string(a.Status),
		a.Priority, a.Tags, a.Metadata, a.PublishedAt, nullTime(a.ExpiresAt),
		a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// sortColumns whitelists sortable fields; anything else falls back to
// published_at.
var sortColumns = map[string]string{
	"publishedAt": "published_at",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"priority":    "priority",
	"riskLevel":   "risk_level",
	"title":       "title",
}

func (s *SQLiteDB) List(ctx context.Context, f AlertFilter) ([]models.Alert, int, error) {
	where := alertFilterConds(f)

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = "published_at"
	}
	direction := "DESC"
	if f.SortOrder == "asc" {
		direction = "ASC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	builder := sq.Select(alertColumns).From("alerts").
		OrderBy(column + " " + direction).
		Limit(uint64(limit)).
		Offset(uint64(f.Offset))
	if len(where) > 0 {
		builder = builder.Where(where)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate alerts: %w", err)
	}

	countBuilder := sq.Select("COUNT(*)").From("alerts")
	if len(where) > 0 {
		countBuilder = countBuilder.Where(where)
	}
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	return alerts, total, nil
}

func alertFilterConds(f AlertFilter) sq.And {
	conds := sq.And{}
	if f.Category != "" {
		conds = append(conds, sq.Eq{"category": f.Category})
	}
	if f.RiskLevel != "" {
		conds = append(conds, sq.Eq{"risk_level": f.RiskLevel})
	}
	if f.Status != "" {
		conds = append(conds, sq.Eq{"status": f.Status})
	}
	if f.PublishedSince != nil {
		conds = append(conds, sq.GtOrEq{"published_at": *f.PublishedSince})
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		conds = append(conds, sq.Or{
			sq.Like{"title": pattern},
			sq.Like{"description": pattern},
			sq.Like{"source": pattern},
		})
	}
	return conds
}

func (s *SQLiteDB) FindByTitleOrSource(ctx context.Context, title, url string) (*models.Alert, error) {
	or := sq.Or{sq.Eq{"title": title}}
	if url != "" {
		or = append(or, sq.Eq{"source": url})
	}

	query, args, err := sq.Select(alertColumns).From("alerts").Where(or).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build dedup query: %w", err)
	}

	a, err := scanAlert(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}
	return a, nil
}

func (s *SQLiteDB) ListForDigest(ctx context.Context, since time.Time, limit int) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE published_at >= ? AND status = ?
		ORDER BY priority ASC, published_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, since, string(models.AlertStatusActive), limit)
	if err != nil {
		return nil, fmt.Errorf("list digest alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan digest alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteDB) PurgeScraped(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts
		 WHERE created_at < ?
		   AND json_extract(metadata, '$.type') = ?`,
		before, models.MetadataTypeNewsScraping,
	)
	if err != nil {
		return 0, fmt.Errorf("purge scraped alerts: %w", err)
	}
	return res.RowsAffected()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		a           models.Alert
		rawContent  sql.NullString
		subcategory sql.NullString
		expiresAt   sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &rawContent, &a.Source, &a.Category,
		&subcategory, &a.RiskLevel, &a.Severity, &a.Status, &a.Priority,
		&a.Tags, &a.Metadata, &a.PublishedAt, &expiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.RawContent = rawContent.String
	a.Subcategory = subcategory.String
	if expiresAt.Valid {
		t := expiresAt.Time
		a.ExpiresAt = &t
	}
	return &a, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
