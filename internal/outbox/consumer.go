// Package outbox drains pending email deliveries queued by other components.
// Senders never call the email provider directly for notifications; they
// insert a pending delivery row and this consumer picks it up.
package outbox

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/beacon-compliance/beacon-monitor/internal/email"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

const defaultPollInterval = 30 * time.Second

type Consumer struct {
	deliveries repository.EmailDeliveryRepository
	alerts     repository.AlertRepository
	sender     email.Sender

	numWorkers   int
	pollInterval time.Duration
	jobs         chan models.EmailDelivery

	mu       sync.Mutex
	inFlight map[string]bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewConsumer(
	deliveries repository.EmailDeliveryRepository,
	alerts repository.AlertRepository,
	sender email.Sender,
	numWorkers int,
	bufferSize int,
	pollInterval time.Duration,
) *Consumer {
	if numWorkers <= 0 {
		numWorkers = 2
	}
	if bufferSize <= 0 {
		bufferSize = numWorkers * 4
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Consumer{
		deliveries:   deliveries,
		alerts:       alerts,
		sender:       sender,
		numWorkers:   numWorkers,
		pollInterval: pollInterval,
		jobs:         make(chan models.EmailDelivery, bufferSize),
		inFlight:     make(map[string]bool),
	}
}

// Start launches the poll loop and the worker goroutines. It returns
// immediately; Stop blocks until everything has drained.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	for i := 1; i <= c.numWorkers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}

	c.wg.Add(1)
	go c.pollLoop(ctx)
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Consumer) pollLoop(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.jobs)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	c.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

// poll fetches a batch of pending notifications and hands them to the
// workers. Rows already in flight are skipped; the pending-only guard on the
// status update makes a duplicate pickup harmless anyway.
func (c *Consumer) poll(ctx context.Context) {
	pending, err := c.deliveries.ListPendingDeliveries(ctx, models.EmailTypeCriticalAlert, cap(c.jobs))
	if err != nil {
		slog.Error("error polling outbox", "error", err)
		return
	}

	for _, d := range pending {
		c.mu.Lock()
		if c.inFlight[d.ID] {
			c.mu.Unlock()
			continue
		}
		c.inFlight[d.ID] = true
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			c.release(d.ID)
			return
		case c.jobs <- d:
		}
	}
}

func (c *Consumer) worker(ctx context.Context, id int) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-c.jobs:
			if !ok {
				return
			}
			c.process(ctx, d)
			c.release(d.ID)
		}
	}
}

func (c *Consumer) release(id string) {
	c.mu.Lock()
	delete(c.inFlight, id)
	c.mu.Unlock()
}

func (c *Consumer) process(ctx context.Context, d models.EmailDelivery) {
	body := c.renderNotification(ctx, d)

	_, sendErr := c.sender.Send(ctx, email.Message{
		To:      []string{d.Recipient},
		Subject: d.Subject,
		HTML:    body,
	})

	status := models.DeliveryStatusSent
	errMsg := ""
	if sendErr != nil {
		status = models.DeliveryStatusFailed
		errMsg = sendErr.Error()
		slog.Error("notification send failed", "delivery", d.ID, "recipient", d.Recipient, "error", sendErr)
	} else {
		slog.Info("notification sent", "delivery", d.ID, "recipient", d.Recipient)
	}

	if err := c.deliveries.MarkDeliveryResult(ctx, d.ID, status, errMsg); err != nil {
		// Most likely another worker already finished this delivery.
		slog.Warn("error marking delivery result", "delivery", d.ID, "error", err)
	}
}

// renderNotification builds the notification body from the queued metadata,
// enriching it with current alert details when the alert still exists.
func (c *Consumer) renderNotification(ctx context.Context, d models.EmailDelivery) string {
	alertID := d.Metadata.String("alert_id")
	riskLevel := d.Metadata.String("risk_level")

	title := d.Subject
	description := ""
	source := ""
	if alertID != "" {
		if alert, err := c.alerts.GetByID(ctx, alertID); err == nil {
			title = alert.Title
			description = alert.Description
			source = alert.Source
			riskLevel = string(alert.RiskLevel)
		}
	}

	return fmt.Sprintf(`<div style="font-family:Arial,Helvetica,sans-serif;max-width:640px;margin:0 auto;">
  <div style="background-color:#dc2626;color:#ffffff;padding:16px;border-radius:8px 8px 0 0;">
    <h1 style="margin:0;font-size:18px;">%s Risk Alert</h1>
  </div>
  <div style="background-color:#ffffff;padding:20px;border:1px solid #e2e8f0;border-radius:0 0 8px 8px;">
    <h2 style="font-size:15px;color:#0f172a;margin:0 0 8px;">%s</h2>
    <p style="font-size:13px;color:#475569;margin:0 0 12px;">%s</p>
    <p style="font-size:12px;color:#94a3b8;margin:0;">Source: %s</p>
  </div>
</div>`,
		html.EscapeString(riskLevel),
		html.EscapeString(title),
		html.EscapeString(description),
		html.EscapeString(source))
}
