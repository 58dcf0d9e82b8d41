package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetEmailGrade grades a domain's email authentication on demand,
// without running a full scan.
func (h *Handler) GetEmailGrade(c *gin.Context) {
	domain := c.Param("domain")
	if domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Domain required"})
		return
	}
	grade := h.grader.Grade(c.Request.Context(), domain)
	c.JSON(http.StatusOK, grade)
}
