// Package scheduler runs the recurring jobs: the daily digest fan-out and
// the retention purge of scraped alerts.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/beacon-compliance/beacon-monitor/internal/digest"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

type Scheduler struct {
	cron          *cron.Cron
	digests       *digest.Generator
	alerts        repository.AlertRepository
	logs          repository.MonitoringLogRepository
	digestSpec    string
	retentionDays int
}

func New(
	digests *digest.Generator,
	alerts repository.AlertRepository,
	logs repository.MonitoringLogRepository,
	digestSpec string,
	retentionDays int,
) *Scheduler {
	if digestSpec == "" {
		digestSpec = "0 8 * * *"
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Scheduler{
		cron:          cron.New(),
		digests:       digests,
		alerts:        alerts,
		logs:          logs,
		digestSpec:    digestSpec,
		retentionDays: retentionDays,
	}
}

// Start registers the jobs and launches the cron loop in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.digestSpec, func() { s.runDigest(ctx) }); err != nil {
		return fmt.Errorf("schedule digest job: %w", err)
	}
	// Retention runs nightly, off-peak.
	if _, err := s.cron.AddFunc("30 3 * * *", func() { s.runRetention(ctx) }); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}

	s.cron.Start()
	slog.Info("scheduler started", "digestSpec", s.digestSpec, "retentionDays", s.retentionDays)
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDigest(ctx context.Context) {
	started := time.Now()
	res, err := s.digests.SendToAll(ctx)
	if err != nil {
		slog.Error("scheduled digest run failed", "error", err)
		s.audit(ctx, "digest_cron", "error", err.Error(), started, nil)
		return
	}
	slog.Info("scheduled digest run finished", "total", res.Total, "success", res.Success, "errors", res.Errors)
	s.audit(ctx, "digest_cron", "success",
		fmt.Sprintf("digest sent to %d of %d users", res.Success, res.Total), started,
		models.Metadata{"total": res.Total, "success": res.Success, "errors": res.Errors})
}

func (s *Scheduler) runRetention(ctx context.Context) {
	started := time.Now()
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	purged, err := s.alerts.PurgeScraped(ctx, cutoff)
	if err != nil {
		slog.Error("retention purge failed", "error", err)
		s.audit(ctx, "retention_purge", "error", err.Error(), started, nil)
		return
	}
	slog.Info("retention purge finished", "purged", purged, "cutoff", cutoff.Format("2006-01-02"))
	s.audit(ctx, "retention_purge", "success",
		fmt.Sprintf("purged %d scraped alerts", purged), started,
		models.Metadata{"purged": purged, "cutoff": cutoff.Format(time.RFC3339)})
}

func (s *Scheduler) audit(ctx context.Context, source, status, message string, started time.Time, meta models.Metadata) {
	err := s.logs.CreateLog(ctx, &models.MonitoringLog{
		ID:           uuid.NewString(),
		Source:       source,
		Status:       status,
		Message:      message,
		ResponseTime: time.Since(started).Milliseconds(),
		Metadata:     meta,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		slog.Error("error writing monitoring log", "source", source, "error", err)
	}
}
