package handlers

import (
	"log/slog"
	"net/http"

	"gamehall/internal/syncctl"

	"github.com/gin-gonic/gin"
)

// StatsHandler handles statistics requests
type StatsHandler struct {
	console syncctl.Console
	logger  *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(console syncctl.Console, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		console: console,
		logger:  logger,
	}
}

// GetStats returns the active session count and today's totals
// GET /stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.console.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get stats",
			"component", "api",
			"error", err,
		)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
