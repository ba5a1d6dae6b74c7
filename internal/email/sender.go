// Package email wraps the transactional email provider. A missing API key
// switches the sender into demo mode, which logs the send and returns a
// synthetic id without touching the network.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender performs a single delivery attempt. No retries: failures are
// recorded by the caller, not retried here.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type ResendSender struct {
	client  *resend.Client
	from    string
	timeout time.Duration
}

var _ Sender = (*ResendSender)(nil)

const defaultFrom = "Beacon Compliance <alerts@beacon-compliance.com>"

// NewSender returns a Resend-backed sender, or the demo sender when apiKey is
// empty.
func NewSender(apiKey, from string) Sender {
	if apiKey == "" {
		slog.Warn("no email API key configured, running in demo mode")
		return &DemoSender{}
	}
	if from == "" {
		from = defaultFrom
	}
	return &ResendSender{
		client:  resend.NewClient(apiKey),
		from:    from,
		timeout: 15 * time.Second,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return sent.Id, nil
}

// DemoSender logs the would-be delivery and reports success.
type DemoSender struct{}

var _ Sender = (*DemoSender)(nil)

func (s *DemoSender) Send(ctx context.Context, msg Message) (string, error) {
	id := fmt.Sprintf("demo-%d", time.Now().UnixNano())
	slog.Info("demo mode: email would be sent",
		"to", msg.To,
		"subject", msg.Subject,
		"id", id,
	)
	return id, nil
}
