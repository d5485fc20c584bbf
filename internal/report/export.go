package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"gamehall/internal/core"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

const unknownDevice = "Unknown device"

// Format selects how a report is exported
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ErrInvalidFormat is returned for an unknown export format
var ErrInvalidFormat = errors.New("format must be json, md or html")

// ParseFormat converts a query value to a Format, defaulting to JSON
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, FormatHTML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// ContentType returns the MIME type of an exported document
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// Render exports the report as markdown or HTML
func Render(format Format, r *Report, devices []*core.Device, cost core.CostModel, now time.Time) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return RenderMarkdown(r, devices, cost, now), nil
	case FormatHTML:
		return RenderHTML(r, devices, cost, now)
	case FormatJSON:
		return json.Marshal(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// mdRenderer converts report markdown to HTML. Raw HTML in player names is
// escaped since WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Daily report {{.Date}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #f3f3f3; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// Row is one exported session line
type Row struct {
	Device  string
	Player  string
	Type    string
	Elapsed int
	Cost    int64
	Status  string
}

// Rows flattens a report into export rows, resolving device names and
// computing elapsed time and cost against a single now
func Rows(r *Report, devices []*core.Device, cost core.CostModel, now time.Time) []Row {
	names := make(map[string]string, len(devices))
	for _, device := range devices {
		names[device.ID] = device.Name
	}

	rows := make([]Row, 0, len(r.Sessions))
	for _, session := range r.Sessions {
		name, ok := names[session.DeviceID]
		if !ok {
			name = unknownDevice
		}
		status := "ended"
		if session.IsActive {
			status = "active"
		}
		rows = append(rows, Row{
			Device:  name,
			Player:  session.PlayerName,
			Type:    string(session.Type),
			Elapsed: session.ElapsedMinutes(now),
			Cost:    cost.SessionCost(session, now),
			Status:  status,
		})
	}
	return rows
}

// RenderMarkdown renders the report as a markdown document with a session table
func RenderMarkdown(r *Report, devices []*core.Device, cost core.CostModel, now time.Time) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Daily report %s\n\n", r.Date)
	fmt.Fprintf(&buf, "- Total sessions: %d\n", r.Stats.TotalSessions)
	fmt.Fprintf(&buf, "- Total time: %s\n", core.FormatMinutes(r.Stats.TotalTime))
	fmt.Fprintf(&buf, "- Total revenue: %d\n\n", r.Stats.TotalRevenue)

	if len(r.Sessions) == 0 {
		buf.WriteString("No sessions on this date.\n")
		return buf.Bytes()
	}

	buf.WriteString("| Device | Player | Type | Time | Cost | Status |\n")
	buf.WriteString("|---|---|---|---|---|---|\n")
	for _, row := range Rows(r, devices, cost, now) {
		fmt.Fprintf(&buf, "| %s | %s | %s | %s | %d | %s |\n",
			escapeCell(row.Device),
			escapeCell(row.Player),
			row.Type,
			core.FormatMinutes(row.Elapsed),
			row.Cost,
			row.Status,
		)
	}
	return buf.Bytes()
}

// RenderHTML renders the report as a standalone HTML page
func RenderHTML(r *Report, devices []*core.Device, cost core.CostModel, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	if err := mdRenderer.Convert(RenderMarkdown(r, devices, cost, now), &body); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Date string
		Body template.HTML
	}{
		Date: r.Date,
		Body: template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render report page: %w", err)
	}
	return out.Bytes(), nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
