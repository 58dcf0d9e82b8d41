package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/queue"
)

type scanRequest struct {
	Domain   string       `json:"domain" binding:"required"`
	Score    int          `json:"score" binding:"min=0,max=100"`
	Issues   audit.Issues `json:"issues"`
	ScanTime time.Time    `json:"scan_time"`
	Priority int          `json:"priority"`
}

func (r *scanRequest) submission(tenantID string) audit.Submission {
	return audit.Submission{
		Domain:   r.Domain,
		TenantID: tenantID,
		Score:    r.Score,
		Issues:   r.Issues,
		ScanTime: r.ScanTime,
	}
}

// SubmitScan enqueues a crawler submission for a worker to process.
func (h *Handler) SubmitScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &queue.ScanJob{
		ID:         uuid.NewString(),
		Priority:   req.Priority,
		Submission: req.submission(c.GetString("tenant_id")),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.queue.Push(c.Request.Context(), job); err != nil {
		h.logger.Error("enqueue scan failed", zap.String("domain", req.Domain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue scan"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "domain": req.Domain})
}

// ProcessScanSync runs the full pipeline inline and returns the audit
// result with its drift report.
func (h *Handler) ProcessScanSync(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, drift, err := h.service.Process(c.Request.Context(), req.submission(c.GetString("tenant_id")))
	if err != nil {
		h.logger.Error("sync scan failed", zap.String("domain", req.Domain), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scan processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit": result, "drift": drift})
}
