// Package ingestion converts batches of raw scraped articles into alert
// records. Batches are partial-failure tolerant: one bad article never aborts
// the rest, and every run leaves one monitoring log behind.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/beacon-compliance/beacon-monitor/internal/classifier"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

// Article is one raw scraped news item. The legacy snake_case fields mirror
// what the scraper service emits alongside the newer camelCase ones.
type Article struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	Category    string   `json:"category"`
	RiskLevel   string   `json:"riskLevel"`
	Severity    string   `json:"severity"`
	Status      string   `json:"status"`
	Priority    int      `json:"priority"`
	PublishedAt string   `json:"publishedAt"`
	Tags        []string `json:"tags"`

	Content        string   `json:"content"`
	PublishedDate  string   `json:"published_date"`
	ScrapedDate    string   `json:"scraped_date"`
	SentimentScore *float64 `json:"sentiment_score"`
	RelevanceScore *float64 `json:"relevance_score"`
	Entities       []string `json:"entities"`
	Summary        string   `json:"summary"`
}

type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

const (
	logSource   = "news_scraper"
	logSourceID = "news-scraper-service"

	maxDescriptionLen = 500
)

type Processor struct {
	alerts     repository.AlertRepository
	deliveries repository.EmailDeliveryRepository
	logs       repository.MonitoringLogRepository

	// notifyRecipient is the fixed compliance-team distribution that receives
	// high-risk notifications.
	notifyRecipient string
}

func NewProcessor(
	alerts repository.AlertRepository,
	deliveries repository.EmailDeliveryRepository,
	logs repository.MonitoringLogRepository,
	notifyRecipient string,
) *Processor {
	return &Processor{
		alerts:          alerts,
		deliveries:      deliveries,
		logs:            logs,
		notifyRecipient: notifyRecipient,
	}
}

// ProcessBatch runs every article through dedup, classification and
// persistence. Articles are processed sequentially within one call; the
// dedup check-then-insert is not atomic across concurrent batches.
func (p *Processor) ProcessBatch(ctx context.Context, articles []Article) Result {
	started := time.Now()
	var result Result

	for i := range articles {
		if err := p.processOne(ctx, &articles[i], &result); err != nil {
			slog.Error("error processing article", "title", articles[i].Title, "error", err)
			result.Errors++
		}
	}

	if err := p.logs.CreateLog(ctx, &models.MonitoringLog{
		ID:       uuid.NewString(),
		Source:   logSource,
		SourceID: logSourceID,
		Status:   "success",
		Message: fmt.Sprintf("Processed %d articles, skipped %d, errors: %d",
			result.Processed, result.Skipped, result.Errors),
		ResponseTime: time.Since(started).Milliseconds(),
		Metadata: models.Metadata{
			"processed": result.Processed,
			"skipped":   result.Skipped,
			"errors":    result.Errors,
		},
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Error("error writing ingestion log", "error", err)
	}

	return result
}

// LogFailure records a whole-request ingestion failure in the audit trail.
func (p *Processor) LogFailure(ctx context.Context, cause error) {
	if err := p.logs.CreateLog(ctx, &models.MonitoringLog{
		ID:        uuid.NewString(),
		Source:    logSource,
		SourceID:  logSourceID,
		Status:    "error",
		Message:   fmt.Sprintf("Error processing news: %v", cause),
		Metadata:  models.Metadata{"error": cause.Error()},
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Error("error writing ingestion failure log", "error", err)
	}
}

func (p *Processor) processOne(ctx context.Context, article *Article, result *Result) error {
	existing, err := p.alerts.FindByTitleOrSource(ctx, article.Title, article.URL)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		result.Skipped++
		return nil
	}

	input := classifier.Input{
		Title:          article.Title,
		Body:           joinBody(article),
		Tags:           article.Tags,
		Category:       article.Category,
		SentimentScore: article.SentimentScore,
	}

	riskLevel := models.RiskLevel(article.RiskLevel)
	if riskLevel == "" {
		riskLevel = classifier.RiskLevelFor(input)
	}
	severity := models.Severity(article.Severity)
	if severity == "" {
		severity = classifier.SeverityFor(input)
	}
	priority := article.Priority
	if priority == 0 {
		priority = classifier.PriorityFor(input)
	}
	status := models.AlertStatus(article.Status)
	if status == "" {
		status = models.AlertStatusActive
	}

	now := time.Now()
	alert := &models.Alert{
		ID:          uuid.NewString(),
		Title:       article.Title,
		Description: describeArticle(article),
		Source:      article.Source,
		Category:    article.Category,
		RiskLevel:   riskLevel,
		Severity:    severity,
		Status:      status,
		Priority:    priority,
		Tags:        article.Tags,
		Metadata:    provenance(article),
		PublishedAt: publishedAt(article, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.alerts.Create(ctx, alert); err != nil {
		return fmt.Errorf("persist alert: %w", err)
	}
	result.Processed++

	if riskLevel == models.RiskLevelCritical || riskLevel == models.RiskLevelHigh {
		p.queueHighRiskNotification(ctx, alert)
	}

	return nil
}

// queueHighRiskNotification inserts a pending delivery into the outbox table.
// A separate consumer picks it up; a queueing failure is logged but does not
// count against the batch.
func (p *Processor) queueHighRiskNotification(ctx context.Context, alert *models.Alert) {
	err := p.deliveries.CreateDelivery(ctx, &models.EmailDelivery{
		ID:        uuid.NewString(),
		Type:      models.EmailTypeCriticalAlert,
		Recipient: p.notifyRecipient,
		Subject:   "High-Risk News Alert: " + alert.Title,
		Status:    models.DeliveryStatusPending,
		Metadata: models.Metadata{
			"alert_id":   alert.ID,
			"risk_level": string(alert.RiskLevel),
		},
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("error queueing high-risk notification", "alert", alert.ID, "error", err)
		return
	}
	slog.Info("high-risk notification queued", "alert", alert.ID, "title", alert.Title)
}

func joinBody(a *Article) string {
	return a.Content + " " + a.Summary + " " + a.Description
}

func describeArticle(a *Article) string {
	if a.Description != "" {
		return a.Description
	}
	if a.Summary != "" {
		return a.Summary
	}
	if a.Content != "" {
		if len(a.Content) > maxDescriptionLen {
			return a.Content[:maxDescriptionLen] + "..."
		}
		return a.Content
	}
	return "No description available"
}

func publishedAt(a *Article, fallback time.Time) time.Time {
	for _, raw := range []string{a.PublishedAt, a.PublishedDate} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return fallback
}

func provenance(a *Article) models.Metadata {
	meta := models.Metadata{
		"type":         models.MetadataTypeNewsScraping,
		"original_url": a.URL,
	}
	if a.ScrapedDate != "" {
		meta["scraped_date"] = a.ScrapedDate
	}
	if a.SentimentScore != nil {
		meta["sentiment_score"] = *a.SentimentScore
	}
	if a.RelevanceScore != nil {
		meta["relevance_score"] = *a.RelevanceScore
	}
	if len(a.Entities) > 0 {
		meta["entities"] = a.Entities
	}
	if a.Content != "" {
		meta["full_content"] = a.Content
	}
	return meta
}
