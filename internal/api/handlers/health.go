package handlers

import (
	"net/http"
	"time"

	"gamehall/internal/syncctl"

	"github.com/gin-gonic/gin"
)

// ModeReporter exposes the console's connectivity mode
type ModeReporter interface {
	Mode() syncctl.Mode
}

// HealthHandler reports liveness and which store is authoritative
type HealthHandler struct {
	modes   ModeReporter
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(modes ModeReporter) *HealthHandler {
	return &HealthHandler{
		modes:   modes,
		started: time.Now(),
	}
}

// GetHealth returns the health status of the service
// GET /health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "UP",
		"service":        "gamehall",
		"mode":           h.modes.Mode(),
		"uptime_seconds": int64(time.Since(h.started) / time.Second),
	})
}
