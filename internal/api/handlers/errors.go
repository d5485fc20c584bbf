package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"gamehall/internal/core"
	"gamehall/internal/report"
	"gamehall/internal/timer"

	"github.com/gin-gonic/gin"
)

// respondError maps a domain error to a status code and the API error body
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			"component", "api",
			"path", c.FullPath(),
			"error", err,
		)
		c.Error(err)
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, report.ErrInvalidDate):
		return http.StatusBadRequest, "INVALID_DATE_FORMAT"
	case errors.Is(err, report.ErrInvalidFormat):
		return http.StatusBadRequest, "INVALID_FORMAT"
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, timer.ErrUnknownAction),
		errors.Is(err, timer.ErrMissingMinutes),
		errors.Is(err, timer.ErrMissingSessionID):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, core.ErrDeviceNotFound):
		return http.StatusNotFound, "DEVICE_NOT_FOUND"
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, core.ErrDeviceUnavailable):
		return http.StatusConflict, "DEVICE_UNAVAILABLE"
	case errors.Is(err, core.ErrSessionClosed):
		return http.StatusConflict, "SESSION_CLOSED"
	case errors.Is(err, core.ErrReloadPending):
		return http.StatusAccepted, "RELOAD_PENDING"
	case errors.Is(err, core.ErrRejected):
		return http.StatusUnprocessableEntity, "REMOTE_REJECTED"
	case errors.Is(err, core.ErrTransport):
		return http.StatusBadGateway, "REMOTE_UNAVAILABLE"
	case errors.Is(err, core.ErrPersistence):
		return http.StatusInternalServerError, "PERSISTENCE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// invalidBody answers a request whose JSON body could not be bound
func invalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request body: " + err.Error(),
		"code":  "INVALID_REQUEST",
	})
}
