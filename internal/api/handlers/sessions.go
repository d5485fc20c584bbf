package handlers

import (
	"log/slog"
	"net/http"

	"gamehall/internal/core"
	"gamehall/internal/syncctl"
	"gamehall/internal/timer"

	"github.com/gin-gonic/gin"
)

// SessionsHandler handles session lifecycle requests
type SessionsHandler struct {
	console syncctl.Console
	logger  *slog.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(console syncctl.Console, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		console: console,
		logger:  logger,
	}
}

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	DeviceID   string `json:"device_id" binding:"required"`
	PlayerName string `json:"player_name"`
	Type       string `json:"session_type" binding:"required"`
	TimeLimit  *int   `json:"time_limit"`
}

// ExtendSessionRequest is the body of POST /sessions/:id/extend
type ExtendSessionRequest struct {
	AdditionalMinutes int `json:"additional_minutes"`
}

// RespondRequest is the body of POST /expiry/:id/respond
type RespondRequest struct {
	Action  timer.Action `json:"action" binding:"required"`
	Minutes int          `json:"minutes"`
}

// CreateSession starts a new session
// POST /sessions
func (h *SessionsHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	sessionType, err := core.ParseSessionType(req.Type)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	session, err := h.console.StartSession(c.Request.Context(), syncctl.StartInput{
		DeviceID:   req.DeviceID,
		PlayerName: req.PlayerName,
		Type:       sessionType,
		TimeLimit:  req.TimeLimit,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// EndSession closes a session
// POST /sessions/:id/end
func (h *SessionsHandler) EndSession(c *gin.Context) {
	session, err := h.console.EndSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ExtendSession raises a session's time limit
// POST /sessions/:id/extend
func (h *SessionsHandler) ExtendSession(c *gin.Context) {
	var req ExtendSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	session, err := h.console.ExtendSession(c.Request.Context(), c.Param("id"), req.AdditionalMinutes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SwitchToUnlimited removes a session's time limit
// POST /sessions/:id/unlimited
func (h *SessionsHandler) SwitchToUnlimited(c *gin.Context) {
	session, err := h.console.SwitchToUnlimited(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// RespondToExpiry applies the operator's answer to a time-up event
// POST /expiry/:id/respond
func (h *SessionsHandler) RespondToExpiry(c *gin.Context) {
	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c, err)
		return
	}

	session, err := h.console.Respond(c.Request.Context(), timer.Response{
		SessionID: c.Param("id"),
		Action:    req.Action,
		Minutes:   req.Minutes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
