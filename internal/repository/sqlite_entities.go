package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

func (s *SQLiteDB) UpsertAnalysis(ctx context.Context, a *models.AlertAnalysis) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_analyses
			(id, alert_id, summary, key_requirements, recommendations, risk_factors, deadlines, model_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (alert_id) DO UPDATE SET
			summary = excluded.summary,
			key_requirements = excluded.key_requirements,
			recommendations = excluded.recommendations,
			risk_factors = excluded.risk_factors,
			deadlines = excluded.deadlines,
			model_version = excluded.model_version,
			created_at = excluded.created_at`,
		a.ID, a.AlertID, a.Summary, a.KeyRequirements, a.Recommendations,
		a.RiskFactors, a.Deadlines, a.ModelVersion, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetAnalysisByAlertID(ctx context.Context, alertID string) (*models.AlertAnalysis, error) {
	var a models.AlertAnalysis
	err := s.db.QueryRowContext(ctx,
		`SELECT id, alert_id, summary, key_requirements, recommendations, risk_factors, deadlines, model_version, created_at
		 FROM alert_analyses WHERE alert_id = ?`, alertID).
		Scan(&a.ID, &a.AlertID, &a.Summary, &a.KeyRequirements, &a.Recommendations,
			&a.RiskFactors, &a.Deadlines, &a.ModelVersion, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return &a, nil
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var (
		u        models.User
		name     sql.NullString
		email    sql.NullString
		timezone sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, timezone, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &name, &email, &timezone, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Name = name.String
	u.Email = email.String
	u.Timezone = timezone.String
	return &u, nil
}

func (s *SQLiteDB) ListUsersWithEmail(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, timezone, created_at FROM users
		 WHERE email IS NOT NULL AND email != ''
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var (
			u        models.User
			name     sql.NullString
			timezone sql.NullString
		)
		if err := rows.Scan(&u.ID, &name, &u.Email, &timezone, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Name = name.String
		u.Timezone = timezone.String
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteDB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CreateUser exists for seeding and tests; the service itself never
// registers users.
func (s *SQLiteDB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, timezone, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, nullStr(u.Name), nullStr(u.Email), nullStr(u.Timezone), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteDB) CreateVendor(ctx context.Context, v *models.Vendor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vendors (id, name, category, website, criticality, monitored, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Category, nullStr(v.Website), v.Criticality, v.Monitored, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert vendor: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, website, criticality, monitored, created_at
		 FROM vendors ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		var (
			v       models.Vendor
			website sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.Category, &website, &v.Criticality, &v.Monitored, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		v.Website = website.String
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (s *SQLiteDB) CreateRegulatoryBody(ctx context.Context, b *models.RegulatoryBody) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO regulatory_bodies (id, name, acronym, jurisdiction, type, website, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, nullStr(b.Acronym), b.Jurisdiction, b.Type, nullStr(b.Website), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert regulatory body: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListRegulatoryBodies(ctx context.Context) ([]models.RegulatoryBody, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, acronym, jurisdiction, type, website, created_at
		 FROM regulatory_bodies ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list regulatory bodies: %w", err)
	}
	defer rows.Close()

	var bodies []models.RegulatoryBody
	for rows.Next() {
		var (
			b       models.RegulatoryBody
			acronym sql.NullString
			website sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &acronym, &b.Jurisdiction, &b.Type, &website, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan regulatory body: %w", err)
		}
		b.Acronym = acronym.String
		b.Website = website.String
		bodies = append(bodies, b)
	}
	return bodies, rows.Err()
}

func (s *SQLiteDB) CreateDelivery(ctx context.Context, d *models.EmailDelivery) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_deliveries (id, type, recipient, subject, status, error, metadata, created_at, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Type, d.Recipient, d.Subject, string(d.Status), nullStr(d.Error),
		d.Metadata, d.CreatedAt, nullTime(d.SentAt))
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// MarkDeliveryResult transitions pending -> sent|failed. Rows already in a
// terminal state are left untouched.
func (s *SQLiteDB) MarkDeliveryResult(ctx context.Context, id string, status models.DeliveryStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_deliveries SET status = ?, error = ?, sent_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), nullStr(errMsg), time.Now(), id, string(models.DeliveryStatusPending))
	if err != nil {
		return fmt.Errorf("mark delivery: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) ListPendingDeliveries(ctx context.Context, emailType string, limit int) ([]models.EmailDelivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, recipient, subject, status, error, metadata, created_at, sent_at
		 FROM email_deliveries
		 WHERE status = ? AND type = ?
		 ORDER BY created_at ASC
		 LIMIT ?`,
		string(models.DeliveryStatusPending), emailType, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []models.EmailDelivery
	for rows.Next() {
		var (
			d      models.EmailDelivery
			errMsg sql.NullString
			sentAt sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.Type, &d.Recipient, &d.Subject, &d.Status,
			&errMsg, &d.Metadata, &d.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		d.Error = errMsg.String
		if sentAt.Valid {
			t := sentAt.Time
			d.SentAt = &t
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (s *SQLiteDB) CountDeliveriesSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_deliveries WHERE created_at >= ?`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) DeliveryStatusCounts(ctx context.Context, since time.Time) ([]DeliveryCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, status, COUNT(*)
		 FROM email_deliveries
		 WHERE created_at >= ?
		 GROUP BY type, status
		 ORDER BY type, status`,
		since)
	if err != nil {
		return nil, fmt.Errorf("delivery stats: %w", err)
	}
	defer rows.Close()

	var counts []DeliveryCount
	for rows.Next() {
		var c DeliveryCount
		if err := rows.Scan(&c.Type, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scan delivery stat: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *SQLiteDB) CreateLog(ctx context.Context, l *models.MonitoringLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitoring_logs (id, source, source_id, status, message, response_time, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Source, nullStr(l.SourceID), l.Status, l.Message, l.ResponseTime,
		l.Metadata, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert monitoring log: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListRecentLogs(ctx context.Context, limit int) ([]models.MonitoringLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, source_id, status, message, response_time, metadata, created_at
		 FROM monitoring_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list monitoring logs: %w", err)
	}
	defer rows.Close()

	var logs []models.MonitoringLog
	for rows.Next() {
		var (
			l        models.MonitoringLog
			sourceID sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Source, &sourceID, &l.Status, &l.Message,
			&l.ResponseTime, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan monitoring log: %w", err)
		}
		l.SourceID = sourceID.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
