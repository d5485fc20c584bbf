package handlers

import (
	"log/slog"
	"net/http"

	"gamehall/internal/syncctl"

	"github.com/gin-gonic/gin"
)

// ThemeHandler handles the theme preference
type ThemeHandler struct {
	console syncctl.Console
	logger  *slog.Logger
}

// NewThemeHandler creates a new theme handler
func NewThemeHandler(console syncctl.Console, logger *slog.Logger) *ThemeHandler {
	return &ThemeHandler{
		console: console,
		logger:  logger,
	}
}

// ThemeRequest is the body of PUT /theme
type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// GetTheme returns the stored theme
// GET /theme
func (h *ThemeHandler) GetTheme(c *gin.Context) {
	theme, err := h.console.Theme(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

// UpdateTheme stores the theme
// PUT /theme
func (h *ThemeHandler) UpdateTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	if err := h.console.SetTheme(c.Request.Context(), req.Theme); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}
