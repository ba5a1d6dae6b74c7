package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beacon-compliance/beacon-monitor/internal/ai"
	"github.com/beacon-compliance/beacon-monitor/internal/digest"
	"github.com/beacon-compliance/beacon-monitor/internal/email"
	"github.com/beacon-compliance/beacon-monitor/internal/ingestion"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
	"github.com/beacon-compliance/beacon-monitor/internal/stats"
)

// mockStore implements every repository interface against in-memory slices.
type mockStore struct {
	alerts     []models.Alert
	analyses   []models.AlertAnalysis
	users      []models.User
	vendors    []models.Vendor
	bodies     []models.RegulatoryBody
	deliveries []models.EmailDelivery
	logs       []models.MonitoringLog

	pingErr error
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) Create(_ context.Context, a *models.Alert) error {
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *mockStore) GetByID(_ context.Context, id string) (*models.Alert, error) {
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			a := m.alerts[i]
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) Update(_ context.Context, a *models.Alert) error {
	for i := range m.alerts {
		if m.alerts[i].ID == a.ID {
			m.alerts[i] = *a
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockStore) List(_ context.Context, f repository.AlertFilter) ([]models.Alert, int, error) {
	results := m.alerts
	if f.PublishedSince != nil {
		var filtered []models.Alert
		for _, a := range results {
			if a.PublishedAt.After(*f.PublishedSince) {
				filtered = append(filtered, a)
			}
		}
		results = filtered
	}
	total := len(results)
	if f.Limit > 0 && len(results) > f.Limit {
		results = results[:f.Limit]
	}
	return results, total, nil
}

func (m *mockStore) FindByTitleOrSource(_ context.Context, title, url string) (*models.Alert, error) {
	for i := range m.alerts {
		if m.alerts[i].Title == title {
			a := m.alerts[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListForDigest(context.Context, time.Time, int) ([]models.Alert, error) {
	return nil, nil
}

func (m *mockStore) PurgeScraped(context.Context, time.Time) (int64, error) { return 2, nil }

func (m *mockStore) UpsertAnalysis(_ context.Context, a *models.AlertAnalysis) error {
	m.analyses = append(m.analyses, *a)
	return nil
}

func (m *mockStore) GetAnalysisByAlertID(_ context.Context, alertID string) (*models.AlertAnalysis, error) {
	for i := range m.analyses {
		if m.analyses[i].AlertID == alertID {
			a := m.analyses[i]
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			u := m.users[i]
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore) ListUsersWithEmail(context.Context) ([]models.User, error) {
	return m.users, nil
}

func (m *mockStore) CountUsers(context.Context) (int, error) { return len(m.users), nil }

func (m *mockStore) CreateVendor(_ context.Context, v *models.Vendor) error {
	m.vendors = append(m.vendors, *v)
	return nil
}

func (m *mockStore) ListVendors(context.Context) ([]models.Vendor, error) {
	return m.vendors, nil
}

func (m *mockStore) CreateRegulatoryBody(_ context.Context, b *models.RegulatoryBody) error {
	m.bodies = append(m.bodies, *b)
	return nil
}

func (m *mockStore) ListRegulatoryBodies(context.Context) ([]models.RegulatoryBody, error) {
	return m.bodies, nil
}

func (m *mockStore) CreateDelivery(_ context.Context, d *models.EmailDelivery) error {
	m.deliveries = append(m.deliveries, *d)
	return nil
}

func (m *mockStore) MarkDeliveryResult(context.Context, string, models.DeliveryStatus, string) error {
	return nil
}

func (m *mockStore) ListPendingDeliveries(context.Context, string, int) ([]models.EmailDelivery, error) {
	return nil, nil
}

func (m *mockStore) CountDeliveriesSince(context.Context, time.Time) (int, error) {
	return len(m.deliveries), nil
}

func (m *mockStore) DeliveryStatusCounts(context.Context, time.Time) ([]repository.DeliveryCount, error) {
	return nil, nil
}

func (m *mockStore) CreateLog(_ context.Context, l *models.MonitoringLog) error {
	m.logs = append(m.logs, *l)
	return nil
}

func (m *mockStore) ListRecentLogs(context.Context, int) ([]models.MonitoringLog, error) {
	return m.logs, nil
}

func (m *mockStore) TotalAlerts(context.Context) (int, error) { return len(m.alerts), nil }
func (m *mockStore) CountByStatus(context.Context, models.AlertStatus) (int, error) {
	return 0, nil
}
func (m *mockStore) CountByRiskLevel(context.Context, models.RiskLevel) (int, error) {
	return 0, nil
}
func (m *mockStore) CountPublishedSince(context.Context, time.Time) (int, error) { return 0, nil }

func (m *mockStore) CountCreatedSince(_ context.Context, since time.Time) (int, error) {
	n := 0
	for _, a := range m.alerts {
		if a.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}
func (m *mockStore) CountRequiringAttention(context.Context) (int, error)        { return 0, nil }
func (m *mockStore) CountResolvedSince(context.Context, time.Time) (int, error)  { return 0, nil }
func (m *mockStore) GroupByCategory(context.Context) ([]repository.CountBucket, error) {
	return nil, nil
}
func (m *mockStore) GroupByRiskLevel(context.Context) ([]repository.CountBucket, error) {
	return nil, nil
}
func (m *mockStore) GroupByStatus(context.Context) ([]repository.CountBucket, error) {
	return nil, nil
}
func (m *mockStore) DailyCounts(context.Context, time.Time) (map[string]int, error) {
	return map[string]int{}, nil
}
func (m *mockStore) TopSources(context.Context, int) ([]repository.CountBucket, error) {
	return nil, nil
}

func setupTestRouter(store *mockStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	sender := email.NewSender("", "")
	handler := NewHandler(Deps{
		Alerts:     store,
		Analyses:   store,
		Users:      store,
		Vendors:    store,
		Bodies:     store,
		Deliveries: store,
		Logs:       store,
		Stats:      stats.NewAggregator(store),
		StatsRepo:  store,
		Processor:  ingestion.NewProcessor(store, store, store, "ops@example.com"),
		Digests:    digest.NewGenerator(store, store, store, sender, 1000),
		Analyzer:   &ai.FallbackAnalyzer{},
		Pinger:     store,
		CronSecret: "test-secret",

		Environment: "test",
	})

	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAlert_Validation(t *testing.T) {
	router := setupTestRouter(&mockStore{})

	w := doJSON(t, router, http.MethodPost, "/api/alerts", gin.H{
		"description": "no title",
		"source":      "Test",
		"category":    "regulatory",
		"riskLevel":   "High",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] != "title is required" {
		t.Errorf("unexpected error message: %q", resp["error"])
	}
}

func TestCreateAlert_PriorityFromRiskLevel(t *testing.T) {
	store := &mockStore{}
	router := setupTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/alerts", gin.H{
		"title":       "GDPR enforcement action",
		"description": "Regulator fined a processor",
		"source":      "EDPB",
		"category":    "regulatory",
		"riskLevel":   "Critical",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var alert models.Alert
	if err := json.Unmarshal(w.Body.Bytes(), &alert); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if alert.Priority != 1 {
		t.Errorf("expected priority 1 for Critical, got %d", alert.Priority)
	}
	if alert.Status != models.AlertStatusActive {
		t.Errorf("expected default status Active, got %s", alert.Status)
	}
	if len(store.alerts) != 1 {
		t.Errorf("expected 1 persisted alert, got %d", len(store.alerts))
	}
}

func TestGetAlert_NotFound(t *testing.T) {
	router := setupTestRouter(&mockStore{})

	w := doJSON(t, router, http.MethodGet, "/api/alerts/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdateAlert_PartialPatch(t *testing.T) {
	store := &mockStore{alerts: []models.Alert{{
		ID:        "a1",
		Title:     "Original title",
		RiskLevel: models.RiskLevelHigh,
		Status:    models.AlertStatusActive,
		Priority:  2,
	}}}
	router := setupTestRouter(store)

	w := doJSON(t, router, http.MethodPatch, "/api/alerts/a1", gin.H{
		"status": "Resolved",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if store.alerts[0].Status != models.AlertStatusResolved {
		t.Errorf("expected status Resolved, got %s", store.alerts[0].Status)
	}
	if store.alerts[0].Title != "Original title" {
		t.Errorf("patch clobbered title: %q", store.alerts[0].Title)
	}
}

func TestProcessNews_MissingArticles(t *testing.T) {
	store := &mockStore{}
	router := setupTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/news/process", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(store.logs) != 1 {
		t.Errorf("expected failure recorded in monitoring log, got %d entries", len(store.logs))
	}
}

func TestProcessNews_Batch(t *testing.T) {
	store := &mockStore{}
	router := setupTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/news/process", gin.H{
		"articles": []gin.H{
			{"title": "Data breach at payments firm", "description": "Records exposed", "url": "https://example.com/a", "source": "Wire"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Processed int `json:"processed"`
		Skipped   int `json:"skipped"`
		Errors    int `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Processed != 1 || resp.Errors != 0 {
		t.Errorf("unexpected counts: %+v", resp)
	}
}

func TestCronDailyDigest_Auth(t *testing.T) {
	router := setupTestRouter(&mockStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/cron/daily-digest", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/cron/daily-digest", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/cron/daily-digest", nil)
	req.Header.Set("Authorization", "Bearer test-secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct secret, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	now := time.Now()
	store := &mockStore{
		alerts: []models.Alert{
			{ID: "a1", CreatedAt: now.Add(-time.Hour)},
			{ID: "a2", CreatedAt: now.AddDate(0, 0, -3)},
		},
		users:      []models.User{{ID: "u1", Email: "a@example.com"}},
		deliveries: []models.EmailDelivery{{ID: "d1"}},
	}
	router := setupTestRouter(store)

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
		Metrics  map[string]int    `json:"metrics"`
		Env      string            `json:"environment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status healthy, got %q", resp.Status)
	}
	if resp.Services["database"] != "connected" || resp.Services["api"] != "operational" {
		t.Errorf("unexpected services: %v", resp.Services)
	}
	if resp.Services["email"] != "demo" {
		t.Errorf("expected demo email service without API key, got %q", resp.Services["email"])
	}
	if resp.Metrics["totalAlerts"] != 2 {
		t.Errorf("expected totalAlerts 2, got %d", resp.Metrics["totalAlerts"])
	}
	if resp.Metrics["totalUsers"] != 1 {
		t.Errorf("expected totalUsers 1, got %d", resp.Metrics["totalUsers"])
	}
	if resp.Metrics["recentAlerts"] != 1 {
		t.Errorf("expected recentAlerts 1 for the last 24h, got %d", resp.Metrics["recentAlerts"])
	}
	if resp.Metrics["recentEmails"] != 1 {
		t.Errorf("expected recentEmails 1, got %d", resp.Metrics["recentEmails"])
	}
	if resp.Env != "test" {
		t.Errorf("expected environment test, got %q", resp.Env)
	}

	store.pingErr = errors.New("db locked")
	w = doJSON(t, router, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when database is down, got %d", w.Code)
	}
	var down struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &down); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if down.Status != "unhealthy" || down.Services["database"] != "error" || down.Services["api"] != "degraded" {
		t.Errorf("unexpected unhealthy payload: status=%q services=%v", down.Status, down.Services)
	}
}

func TestRetentionPurge_BadDays(t *testing.T) {
	router := setupTestRouter(&mockStore{})

	w := doJSON(t, router, http.MethodDelete, "/api/admin/retention?days=-5", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid days, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/admin/retention?days=60", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeAlert_FallbackAnalysis(t *testing.T) {
	store := &mockStore{alerts: []models.Alert{{
		ID:    "a1",
		Title: "New AML guidance",
	}}}
	router := setupTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/alerts/a1/analyze", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var analysis models.AlertAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if analysis.AlertID != "a1" || analysis.Summary == "" {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if len(store.analyses) != 1 {
		t.Errorf("expected analysis persisted, got %d", len(store.analyses))
	}
}
