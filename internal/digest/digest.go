// Package digest builds and sends the daily email summary of recent alerts.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/beacon-compliance/beacon-monitor/internal/email"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

const (
	// digestWindow selects alerts published within the last day.
	digestWindow = 24 * time.Hour
	// maxDigestAlerts caps the email size.
	maxDigestAlerts = 50
)

type Generator struct {
	alerts     repository.AlertRepository
	users      repository.UserRepository
	deliveries repository.EmailDeliveryRepository
	sender     email.Sender

	// limiter paces sends in all-user runs as rate-limit courtesy to the
	// email provider.
	limiter *rate.Limiter
	now     func() time.Time
}

func NewGenerator(
	alerts repository.AlertRepository,
	users repository.UserRepository,
	deliveries repository.EmailDeliveryRepository,
	sender email.Sender,
	sendsPerSecond float64,
) *Generator {
	if sendsPerSecond <= 0 {
		sendsPerSecond = 10
	}
	return &Generator{
		alerts:     alerts,
		users:      users,
		deliveries: deliveries,
		sender:     sender,
		limiter:    rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
		now:        time.Now,
	}
}

type SendResult struct {
	AlertCount int    `json:"alertCount"`
	EmailID    string `json:"emailId"`
}

type BatchResult struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
}

// SendToUser builds one digest for the user and sends it. A digest with zero
// qualifying alerts is still sent as an empty-state email. Every attempt,
// success or failure, leaves one delivery row.
func (g *Generator) SendToUser(ctx context.Context, userID string) (*SendResult, error) {
	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up user %s: %w", userID, err)
	}
	if user.Email == "" {
		return nil, fmt.Errorf("user %s has no email", userID)
	}

	since := g.now().Add(-digestWindow)
	alerts, err := g.alerts.ListForDigest(ctx, since, maxDigestAlerts)
	if err != nil {
		return nil, fmt.Errorf("load digest alerts: %w", err)
	}

	data := buildDigestData(user, alerts, g.now())
	html, err := renderDigest(data)
	if err != nil {
		return nil, fmt.Errorf("render digest: %w", err)
	}

	subject := fmt.Sprintf("Beacon Daily Digest - %d Priority Alerts",
		data.Stats.Critical+data.Stats.High)

	emailID, sendErr := g.sender.Send(ctx, email.Message{
		To:      []string{user.Email},
		Subject: subject,
		HTML:    html,
	})

	status := models.DeliveryStatusSent
	errMsg := ""
	if sendErr != nil {
		status = models.DeliveryStatusFailed
		errMsg = sendErr.Error()
	}

	delivery := &models.EmailDelivery{
		ID:        uuid.NewString(),
		Type:      models.EmailTypeDailyDigest,
		Recipient: user.Email,
		Subject:   subject,
		Status:    status,
		Error:     errMsg,
		Metadata: models.Metadata{
			"alertCount":    data.Stats.Total,
			"criticalCount": data.Stats.Critical,
			"highCount":     data.Stats.High,
		},
		CreatedAt: g.now(),
	}
	if err := g.deliveries.CreateDelivery(ctx, delivery); err != nil {
		slog.Error("error recording digest delivery", "user", userID, "error", err)
	}

	if sendErr != nil {
		return nil, fmt.Errorf("send digest to %s: %w", user.Email, sendErr)
	}

	return &SendResult{AlertCount: data.Stats.Total, EmailID: emailID}, nil
}

// SendToAll fans the digest out to every user with an email address. One
// user's failure is counted and the batch continues; SendToAll itself only
// fails when the user list cannot be loaded.
func (g *Generator) SendToAll(ctx context.Context) (*BatchResult, error) {
	users, err := g.users.ListUsersWithEmail(ctx)
	if err != nil {
		return nil, fmt.Errorf("list digest users: %w", err)
	}

	slog.Info("starting digest run", "users", len(users))

	result := &BatchResult{Total: len(users)}
	for _, user := range users {
		if err := g.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("digest run cancelled: %w", err)
		}

		if _, err := g.SendToUser(ctx, user.ID); err != nil {
			result.Errors++
			slog.Error("digest send failed", "user", user.ID, "email", user.Email, "error", err)
			continue
		}
		result.Success++
		slog.Info("digest sent", "user", user.ID, "email", user.Email)
	}

	slog.Info("digest run complete", "sent", result.Success, "failed", result.Errors)
	return result, nil
}

func buildDigestData(user *models.User, alerts []models.Alert, now time.Time) digestData {
	name := user.Name
	if name == "" {
		name = "Compliance Manager"
	}

	data := digestData{
		UserName: name,
		Date:     now.Format("Monday, January 2, 2006"),
	}

	sources := map[string]bool{}
	for _, a := range alerts {
		sources[a.Source] = true
		switch a.RiskLevel {
		case models.RiskLevelCritical:
			data.Critical = append(data.Critical, a)
		case models.RiskLevelHigh:
			data.High = append(data.High, a)
		case models.RiskLevelMedium:
			data.Medium = append(data.Medium, a)
		}
	}

	data.Stats = digestStats{
		Total:    len(alerts),
		Critical: len(data.Critical),
		High:     len(data.High),
		Sources:  len(sources),
	}
	return data
}
