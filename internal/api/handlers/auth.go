package handlers

import (
	"log/slog"
	"net/http"

	"gamehall/internal/syncctl"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles operator login state
type AuthHandler struct {
	console syncctl.Console
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(console syncctl.Console, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		console: console,
		logger:  logger,
	}
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates the operator
// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	operator, err := h.console.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    operator,
		"mode":    h.console.Mode(),
	})
}

// Logout clears the operator
// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.console.Logout(c.Request.Context()); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMode returns the connectivity mode and the logged-in operator
// GET /mode
func (h *AuthHandler) GetMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode": h.console.Mode(),
		"user": h.console.CurrentUser(),
	})
}
