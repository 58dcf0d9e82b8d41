package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/db"
	"github.com/privacychecker/audit-core/internal/storage/redis"
	"github.com/privacychecker/audit-core/internal/trend"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *Handler) GetLatestAudit(c *gin.Context) {
	domain := c.Param("domain")
	result, err := h.repo.GetLatestAudit(domain, c.GetString("tenant_id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No audit found for domain"})
			return
		}
		h.logger.Error("load audit failed", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetAuditHistory(c *gin.Context) {
	domain := c.Param("domain")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	results, err := h.repo.GetAuditHistory(domain, c.GetString("tenant_id"), limit)
	if err != nil {
		h.logger.Error("load history failed", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"domain": domain,
		"audits": results,
		"count":  len(results),
		"trend":  trend.Summarize(results),
	})
}

// GetDriftReport serves the drift report cached by the most recent
// scan. Reports expire with the cache TTL.
func (h *Handler) GetDriftReport(c *gin.Context) {
	domain := c.Param("domain")
	report, err := h.store.GetCachedDriftReport(c.Request.Context(), domain)
	if err != nil {
		if errors.Is(err, redis.ErrNoSnapshot) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No recent drift report for domain"})
			return
		}
		h.logger.Error("load drift report failed", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load drift report"})
		return
	}
	c.JSON(http.StatusOK, report)
}
