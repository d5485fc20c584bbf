package handlers

import (
	"net/http"

	"gamehall/internal/syncctl"

	"github.com/gin-gonic/gin"
)

// DevicesHandler handles device-related requests
type DevicesHandler struct {
	console syncctl.Console
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(console syncctl.Console) *DevicesHandler {
	return &DevicesHandler{console: console}
}

// ListDevices returns every device with its live session figures
// GET /devices
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, h.console.Devices(c.Request.Context()))
}
