package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/doctors-portal/internal/logger"
)

func (h *Handler) Home(c *gin.Context) {
	c.String(http.StatusOK, "Hello From Doctor Uncle")
}

// GetServices lists service names for the booking form.
func (h *Handler) GetServices(c *gin.Context) {
	names, err := h.Catalog.Names(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to retrieve services", err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "store unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail logs err and answers 500 with msg.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	logger.FromContext(c.Request.Context()).Error(msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
