package outbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/beacon-compliance/beacon-monitor/internal/email"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[string]*models.EmailDelivery
}

func newMemDeliveryRepo(pending ...*models.EmailDelivery) *memDeliveryRepo {
	r := &memDeliveryRepo{deliveries: make(map[string]*models.EmailDelivery)}
	for _, d := range pending {
		r.deliveries[d.ID] = d
	}
	return r
}

func (r *memDeliveryRepo) CreateDelivery(_ context.Context, d *models.EmailDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries[d.ID] = d
	return nil
}

func (r *memDeliveryRepo) MarkDeliveryResult(_ context.Context, id string, status models.DeliveryStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok || d.Status != models.DeliveryStatusPending {
		return repository.ErrNotFound
	}
	d.Status = status
	d.Error = errMsg
	return nil
}

func (r *memDeliveryRepo) ListPendingDeliveries(_ context.Context, emailType string, limit int) ([]models.EmailDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EmailDelivery
	for _, d := range r.deliveries {
		if d.Type == emailType && d.Status == models.DeliveryStatusPending && len(out) < limit {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDeliveryRepo) CountDeliveriesSince(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *memDeliveryRepo) DeliveryStatusCounts(context.Context, time.Time) ([]repository.DeliveryCount, error) {
	return nil, nil
}

func (r *memDeliveryRepo) status(id string) models.DeliveryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deliveries[id].Status
}

type stubAlertRepo struct {
	alerts map[string]*models.Alert
}

func (r *stubAlertRepo) Create(context.Context, *models.Alert) error { return nil }
func (r *stubAlertRepo) GetByID(_ context.Context, id string) (*models.Alert, error) {
	if a, ok := r.alerts[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}
func (r *stubAlertRepo) Update(context.Context, *models.Alert) error { return nil }
func (r *stubAlertRepo) Delete(context.Context, string) error        { return nil }
func (r *stubAlertRepo) List(context.Context, repository.AlertFilter) ([]models.Alert, int, error) {
	return nil, 0, nil
}
func (r *stubAlertRepo) FindByTitleOrSource(context.Context, string, string) (*models.Alert, error) {
	return nil, nil
}
func (r *stubAlertRepo) ListForDigest(context.Context, time.Time, int) ([]models.Alert, error) {
	return nil, nil
}
func (r *stubAlertRepo) PurgeScraped(context.Context, time.Time) (int64, error) { return 0, nil }

type recordingSender struct {
	mu      sync.Mutex
	sent    []email.Message
	failAll bool
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return "", errors.New("provider unavailable")
	}
	s.sent = append(s.sent, msg)
	return "email-1", nil
}

func (s *recordingSender) messages() []email.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]email.Message(nil), s.sent...)
}

func pendingDelivery(id string) *models.EmailDelivery {
	return &models.EmailDelivery{
		ID:        id,
		Type:      models.EmailTypeCriticalAlert,
		Recipient: "ops@example.com",
		Subject:   "High-Risk News Alert: Breach at Acme",
		Status:    models.DeliveryStatusPending,
		Metadata:  models.Metadata{"alert_id": "a1", "risk_level": "Critical"},
		CreatedAt: time.Now(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConsumer_SendsPendingAndMarksSent(t *testing.T) {
	repo := newMemDeliveryRepo(pendingDelivery("d1"), pendingDelivery("d2"))
	alerts := &stubAlertRepo{alerts: map[string]*models.Alert{
		"a1": {ID: "a1", Title: "Breach at Acme", Description: "Customer data exposed", Source: "Reuters", RiskLevel: models.RiskLevelCritical},
	}}
	sender := &recordingSender{}

	c := NewConsumer(repo, alerts, sender, 2, 8, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Stop()

	waitFor(t, func() bool {
		return repo.status("d1") == models.DeliveryStatusSent &&
			repo.status("d2") == models.DeliveryStatusSent
	})

	msgs := sender.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].HTML, "Breach at Acme") {
		t.Errorf("notification body missing alert title: %q", msgs[0].HTML)
	}
	if !strings.Contains(msgs[0].HTML, "Reuters") {
		t.Errorf("notification body missing source: %q", msgs[0].HTML)
	}
}

func TestConsumer_SendFailureMarksFailed(t *testing.T) {
	repo := newMemDeliveryRepo(pendingDelivery("d1"))
	sender := &recordingSender{failAll: true}

	c := NewConsumer(repo, &stubAlertRepo{}, sender, 1, 4, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Stop()

	waitFor(t, func() bool {
		return repo.status("d1") == models.DeliveryStatusFailed
	})

	repo.mu.Lock()
	errMsg := repo.deliveries["d1"].Error
	repo.mu.Unlock()
	if errMsg != "provider unavailable" {
		t.Errorf("expected provider error recorded, got %q", errMsg)
	}
}

func TestConsumer_MissingAlertStillSends(t *testing.T) {
	repo := newMemDeliveryRepo(pendingDelivery("d1"))
	sender := &recordingSender{}

	c := NewConsumer(repo, &stubAlertRepo{}, sender, 1, 4, 10*time.Millisecond)
	c.Start(context.Background())
	defer c.Stop()

	waitFor(t, func() bool {
		return repo.status("d1") == models.DeliveryStatusSent
	})

	msgs := sender.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(msgs))
	}
	// Falls back to the queued subject and risk level.
	if !strings.Contains(msgs[0].HTML, "Critical Risk Alert") {
		t.Errorf("expected queued risk level in body: %q", msgs[0].HTML)
	}
}

func TestConsumer_StopIsIdempotentWithNoWork(t *testing.T) {
	repo := newMemDeliveryRepo()
	c := NewConsumer(repo, &stubAlertRepo{}, &recordingSender{}, 2, 4, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()
	c.Stop()
}
