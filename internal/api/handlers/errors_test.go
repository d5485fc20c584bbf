package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gamehall/internal/core"
	"gamehall/internal/report"
	"gamehall/internal/timer"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", core.ErrInvalidPlayerName, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"expiry action", timer.ErrUnknownAction, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"date", report.ErrInvalidDate, http.StatusBadRequest, "INVALID_DATE_FORMAT"},
		{"format", report.ErrInvalidFormat, http.StatusBadRequest, "INVALID_FORMAT"},
		{"credentials", fmt.Errorf("%w: %w", core.ErrInvalidCredentials, core.ErrRejected), http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"device", core.ErrDeviceNotFound, http.StatusNotFound, "DEVICE_NOT_FOUND"},
		{"session", core.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"occupied", fmt.Errorf("%w: PS4 #1", core.ErrDeviceUnavailable), http.StatusConflict, "DEVICE_UNAVAILABLE"},
		{"closed", core.ErrSessionClosed, http.StatusConflict, "SESSION_CLOSED"},
		{"reload pending", fmt.Errorf("%w: device 1", core.ErrReloadPending), http.StatusAccepted, "RELOAD_PENDING"},
		{"rejected", core.ErrRejected, http.StatusUnprocessableEntity, "REMOTE_REJECTED"},
		{"transport", core.ErrTransport, http.StatusBadGateway, "REMOTE_UNAVAILABLE"},
		{"persistence", core.ErrPersistence, http.StatusInternalServerError, "PERSISTENCE_ERROR"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
