package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/beacon-compliance/beacon-monitor/internal/models"
)

var errInvalidBatch = errors.New("articles array is required")

type digestRequest struct {
	Action       string `json:"action"`
	TargetUserID string `json:"targetUserId"`
}

func (h *Handler) sendDigest(c *gin.Context) {
	var req digestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "send-to-user":
		if req.TargetUserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "targetUserId is required for send-to-user"})
			return
		}
		res, err := h.deps.Digests.SendToUser(ctx, req.TargetUserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "digest send failed", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "digest sent", "alertCount": res.AlertCount, "emailId": res.EmailID})

	case "send-to-all":
		res, err := h.deps.Digests.SendToAll(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "digest run failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "digest run complete", "results": res})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be send-to-user or send-to-all"})
	}
}

// cronDailyDigest is the endpoint external schedulers hit. It requires the
// shared bearer secret.
func (h *Handler) cronDailyDigest(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || h.deps.CronSecret == "" || token != h.deps.CronSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	res, err := h.deps.Digests.SendToAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "digest run failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "daily digest triggered", "results": res})
}

func (h *Handler) listVendors(c *gin.Context) {
	vendors, err := h.deps.Vendors.ListVendors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch vendors"})
		return
	}
	if vendors == nil {
		vendors = []models.Vendor{}
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

type createVendorRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Website     string `json:"website"`
	Criticality string `json:"criticality"`
	Monitored   *bool  `json:"monitored"`
}

func (h *Handler) createVendor(c *gin.Context) {
	var req createVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.Name == "" || req.Category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and category are required"})
		return
	}

	criticality := req.Criticality
	if criticality == "" {
		criticality = "Medium"
	}
	monitored := true
	if req.Monitored != nil {
		monitored = *req.Monitored
	}

	vendor := &models.Vendor{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Category:    req.Category,
		Website:     req.Website,
		Criticality: criticality,
		Monitored:   monitored,
		CreatedAt:   time.Now(),
	}
	if err := h.deps.Vendors.CreateVendor(c.Request.Context(), vendor); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create vendor"})
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (h *Handler) listRegulatoryBodies(c *gin.Context) {
	bodies, err := h.deps.Bodies.ListRegulatoryBodies(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch regulatory bodies"})
		return
	}
	if bodies == nil {
		bodies = []models.RegulatoryBody{}
	}
	c.JSON(http.StatusOK, gin.H{"regulatoryBodies": bodies})
}

// emailStats reports delivery counts by type and status over a window, plus
// the most recent monitoring log entries.
func (h *Handler) emailStats(c *gin.Context) {
	days := 7
	if d := c.Query("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 && v <= 90 {
			days = v
		}
	}
	since := time.Now().AddDate(0, 0, -days)

	ctx := c.Request.Context()
	counts, err := h.deps.Deliveries.DeliveryStatusCounts(ctx, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch email stats"})
		return
	}
	total, err := h.deps.Deliveries.CountDeliveriesSince(ctx, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch email stats"})
		return
	}
	logs, err := h.deps.Logs.ListRecentLogs(ctx, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch monitoring logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"window":     strconv.Itoa(days) + " days",
		"total":      total,
		"byStatus":   counts,
		"recentLogs": logs,
	})
}

// purgeRetention removes scraped alerts older than the retention window.
func (h *Handler) purgeRetention(c *gin.Context) {
	days := 30
	if d := c.Query("days"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = v
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	purged, err := h.deps.Alerts.PurgeScraped(c.Request.Context(), cutoff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retention purge failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "retention purge complete",
		"purged":  purged,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
}

func (h *Handler) health(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.deps.Pinger.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"error":     err.Error(),
			"services": gin.H{
				"database": "error",
				"api":      "degraded",
			},
		})
		return
	}

	emailStatus := "demo"
	if h.deps.EmailConfigured {
		emailStatus = "configured"
	}

	last24h := time.Now().AddDate(0, 0, -1)
	metrics := gin.H{}
	if total, err := h.deps.StatsRepo.TotalAlerts(ctx); err == nil {
		metrics["totalAlerts"] = total
	}
	if users, err := h.deps.Users.CountUsers(ctx); err == nil {
		metrics["totalUsers"] = users
	}
	if recent, err := h.deps.StatsRepo.CountCreatedSince(ctx, last24h); err == nil {
		metrics["recentAlerts"] = recent
	}
	if sent, err := h.deps.Deliveries.CountDeliveriesSince(ctx, last24h); err == nil {
		metrics["recentEmails"] = sent
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"services": gin.H{
			"database": "connected",
			"api":      "operational",
			"email":    emailStatus,
		},
		"metrics":     metrics,
		"uptime":      time.Since(h.startTime).Round(time.Second).String(),
		"environment": h.deps.Environment,
	})
}
