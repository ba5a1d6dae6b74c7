package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beacon-compliance/beacon-monitor/internal/ingestion"
	"github.com/beacon-compliance/beacon-monitor/internal/models"
	"github.com/beacon-compliance/beacon-monitor/internal/repository"
)

type processNewsRequest struct {
	Articles []ingestion.Article `json:"articles"`
}

// processNews accepts a scraper batch. Per-article failures are tolerated and
// reported in the counts; the endpoint only fails on an unreadable request.
func (h *Handler) processNews(c *gin.Context) {
	var req processNewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.deps.Processor.LogFailure(c.Request.Context(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.Articles == nil {
		h.deps.Processor.LogFailure(c.Request.Context(), errInvalidBatch)
		c.JSON(http.StatusBadRequest, gin.H{"error": "articles array is required"})
		return
	}

	result := h.deps.Processor.ProcessBatch(c.Request.Context(), req.Articles)
	c.JSON(http.StatusOK, gin.H{
		"message":   "news processing complete",
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
	})
}

// listNews shows recently scraped alerts, newest first.
func (h *Handler) listNews(c *gin.Context) {
	hours := 24
	if v := c.Query("hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 24*30 {
			hours = n
		}
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	filter := repository.AlertFilter{
		Category:       c.Query("category"),
		SortBy:         "publishedAt",
		SortOrder:      "desc",
		PublishedSince: &since,
		Limit:          limit,
	}

	alerts, _, err := h.deps.Alerts.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch news"})
		return
	}

	news := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.Metadata.String("type") == models.MetadataTypeNewsScraping {
			news = append(news, a)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"news":  news,
		"count": len(news),
		"since": since.Format(time.RFC3339),
	})
}
