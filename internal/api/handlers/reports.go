package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gamehall/internal/report"
	"gamehall/internal/syncctl"

	"github.com/gin-gonic/gin"
)

// ReportsHandler handles report requests
type ReportsHandler struct {
	console  syncctl.Console
	location *time.Location
	logger   *slog.Logger
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(console syncctl.Console, location *time.Location, logger *slog.Logger) *ReportsHandler {
	if location == nil {
		location = time.Local
	}
	return &ReportsHandler{
		console:  console,
		location: location,
		logger:   logger,
	}
}

// GetDailyReport returns the report of a day, today by default
// GET /reports/daily?date=YYYY-MM-DD&format=json|md|html
func (h *ReportsHandler) GetDailyReport(c *gin.Context) {
	day := c.Query("date")
	if day == "" {
		day = time.Now().In(h.location).Format(report.DateLayout)
	}

	format, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if format == report.FormatJSON {
		r, err := h.console.DailyReport(c.Request.Context(), day)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, r)
		return
	}

	out, err := h.console.ExportReport(c.Request.Context(), day, format)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("report-%s.%s", day, format)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), out)
}
