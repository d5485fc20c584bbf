package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"gamehall/internal/api/middleware"
	"gamehall/internal/timer"

	"github.com/gin-gonic/gin"
)

// DefaultKeepAlive is the interval of SSE keep-alive comments
const DefaultKeepAlive = 15 * time.Second

// EventSource hands out expiry event subscriptions
type EventSource interface {
	Subscribe() (<-chan timer.Event, func())
}

// EventsHandler streams expiry events to the UI
type EventsHandler struct {
	source    EventSource
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(source EventSource, keepAlive time.Duration, logger *slog.Logger) *EventsHandler {
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	return &EventsHandler{
		source:    source,
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// StreamEvents sends every expiry event as a server-sent "expiry" event
// GET /events
func (h *EventsHandler) StreamEvents(c *gin.Context) {
	events, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	h.logger.Debug("Event stream opened",
		"component", "api",
		"request_id", c.GetString(middleware.RequestIDKey))

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("expiry", event)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})

	h.logger.Debug("Event stream closed",
		"component", "api",
		"request_id", c.GetString(middleware.RequestIDKey))
}
