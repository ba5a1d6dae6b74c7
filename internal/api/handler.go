// Package api exposes the HTTP surface: alert CRUD, news ingestion, email
// digests, reference entities and admin endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/beacon-compliance/beacon-monitor/internal/ai"
	"github.com/beacon-compliance/beacon-monitor/internal/digest"
	"github.com/beacon-compliance/beacon-monitor/internal/ingestion"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
	"github.com/beacon-compliance/beacon-monitor/internal/stats"
)

// Pinger reports backing-store reachability for the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Alerts     repository.AlertRepository
	Analyses   repository.AnalysisRepository
	Users      repository.UserRepository
	Vendors    repository.VendorRepository
	Bodies     repository.RegulatoryBodyRepository
	Deliveries repository.EmailDeliveryRepository
	Logs       repository.MonitoringLogRepository

	Stats     *stats.Aggregator
	StatsRepo repository.StatsRepository
	Processor *ingestion.Processor
	Digests   *digest.Generator
	Analyzer  ai.Analyzer

	Pinger     Pinger
	CronSecret string

	// EmailConfigured distinguishes a real provider key from demo mode in the
	// health payload.
	EmailConfigured bool
	Environment     string
}

type Handler struct {
	deps      Deps
	startTime time.Time
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		deps:      deps,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/alerts", h.listAlerts)
	r.POST("/api/alerts", h.createAlert)
	r.GET("/api/alerts/stats", h.alertStats)
	r.GET("/api/alerts/:id", h.getAlert)
	r.PATCH("/api/alerts/:id", h.updateAlert)
	r.DELETE("/api/alerts/:id", h.deleteAlert)
	r.POST("/api/alerts/:id/analyze", h.analyzeAlert)

	r.POST("/api/news/process", h.processNews)
	r.GET("/api/news", h.listNews)

	r.POST("/api/email/digest", h.sendDigest)
	r.POST("/api/cron/daily-digest", h.cronDailyDigest)

	r.GET("/api/vendors", h.listVendors)
	r.POST("/api/vendors", h.createVendor)
	r.GET("/api/regulatory-bodies", h.listRegulatoryBodies)

	r.GET("/api/admin/email-stats", h.emailStats)
	r.DELETE("/api/admin/retention", h.purgeRetention)

	r.GET("/api/health", h.health)
}

type createAlertRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	RawContent  string             `json:"rawContent"`
	Source      string             `json:"source"`
	Category    string             `json:"category"`
	Subcategory string             `json:"subcategory"`
	RiskLevel   models.RiskLevel   `json:"riskLevel"`
	Severity    models.Severity    `json:"severity"`
	Status      models.AlertStatus `json:"status"`
	Tags        models.StringList  `json:"tags"`
	Metadata    models.Metadata    `json:"metadata"`
	PublishedAt *time.Time         `json:"publishedAt"`
	ExpiresAt   *time.Time         `json:"expiresAt"`
}

func (r *createAlertRequest) validate() string {
	switch {
	case r.Title == "":
		return "title is required"
	case r.Description == "":
		return "description is required"
	case r.Source == "":
		return "source is required"
	case r.Category == "":
		return "category is required"
	case r.RiskLevel == "":
		return "riskLevel is required"
	}
	return ""
}

func (h *Handler) createAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if msg := req.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	now := time.Now()
	publishedAt := now
	if req.PublishedAt != nil {
		publishedAt = *req.PublishedAt
	}
	severity := req.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	status := req.Status
	if status == "" {
		status = models.AlertStatusActive
	}

	alert := &models.Alert{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		RawContent:  req.RawContent,
		Source:      req.Source,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		RiskLevel:   req.RiskLevel,
		Severity:    severity,
		Status:      status,
		Priority:    models.PriorityForRiskLevel(req.RiskLevel),
		Tags:        req.Tags,
		Metadata:    req.Metadata,
		PublishedAt: publishedAt,
		ExpiresAt:   req.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.deps.Alerts.Create(c.Request.Context(), alert); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create alert"})
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) listAlerts(c *gin.Context) {
	filter := repository.AlertFilter{
		Category:  c.Query("category"),
		RiskLevel: c.Query("riskLevel"),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Limit:     10,
	}

	page := 1
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			filter.Limit = v
		}
	}
	filter.Offset = (page - 1) * filter.Limit

	alerts, total, err := h.deps.Alerts.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"pagination": gin.H{
			"page":       page,
			"limit":      filter.Limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

func (h *Handler) getAlert(c *gin.Context) {
	alert, err := h.deps.Alerts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

type updateAlertRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Source      *string             `json:"source"`
	Category    *string             `json:"category"`
	Subcategory *string             `json:"subcategory"`
	RiskLevel   *models.RiskLevel   `json:"riskLevel"`
	Severity    *models.Severity    `json:"severity"`
	Status      *models.AlertStatus `json:"status"`
	Priority    *int                `json:"priority"`
	Tags        *models.StringList  `json:"tags"`
	ExpiresAt   *time.Time          `json:"expiresAt"`
}

func (h *Handler) updateAlert(c *gin.Context) {
	var req updateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	alert, err := h.deps.Alerts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert"})
		return
	}

	if req.Title != nil {
		alert.Title = *req.Title
	}
	if req.Description != nil {
		alert.Description = *req.Description
	}
	if req.Source != nil {
		alert.Source = *req.Source
	}
	if req.Category != nil {
		alert.Category = *req.Category
	}
	if req.Subcategory != nil {
		alert.Subcategory = *req.Subcategory
	}
	if req.RiskLevel != nil {
		alert.RiskLevel = *req.RiskLevel
	}
	if req.Severity != nil {
		alert.Severity = *req.Severity
	}
	if req.Status != nil {
		alert.Status = *req.Status
	}
	if req.Priority != nil {
		alert.Priority = *req.Priority
	}
	if req.Tags != nil {
		alert.Tags = *req.Tags
	}
	if req.ExpiresAt != nil {
		alert.ExpiresAt = req.ExpiresAt
	}

	if err := h.deps.Alerts.Update(ctx, alert); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) deleteAlert(c *gin.Context) {
	if err := h.deps.Alerts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "alert deleted"})
}

func (h *Handler) alertStats(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 && v <= 365 {
			days = v
		}
	}

	overview, err := h.deps.Stats.Compute(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) analyzeAlert(c *gin.Context) {
	ctx := c.Request.Context()
	alert, err := h.deps.Alerts.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alert"})
		return
	}

	analysis, err := h.deps.Analyzer.Analyze(ctx, alert)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}
	if err := h.deps.Analyses.UpsertAnalysis(ctx, analysis); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store analysis"})
		return
	}
	c.JSON(http.StatusOK, analysis)
}
