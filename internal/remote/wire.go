package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gamehall/internal/core"
	"gamehall/internal/report"
)

// Timestamp layouts accepted from the backend, most specific first
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// flexID accepts an id sent as a JSON number or string
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexInt accepts an integer sent as a JSON number, numeric string or null
type flexInt struct {
	Value int64
	Valid bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexInt{}
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = flexInt{}
			return nil
		}
	}
	// Decimal strings such as "6000.00" are truncated
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = flexInt{Value: v, Valid: true}
	return nil
}

// flexBool accepts true/false, 0/1 and their string forms
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	switch s {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

type wireDevice struct {
	ID            flexID  `json:"id"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	TotalPlayTime flexInt `json:"total_play_time"`
	TotalRevenue  flexInt `json:"total_revenue"`
}

type wireSession struct {
	ID         flexID   `json:"id"`
	DeviceID   flexID   `json:"device_id"`
	PlayerName string   `json:"player_name"`
	Type       string   `json:"session_type"`
	TimeLimit  flexInt  `json:"time_limit"`
	StartTime  string   `json:"start_time"`
	EndTime    *string  `json:"end_time"`
	IsActive   flexBool `json:"is_active"`
	TotalCost  flexInt  `json:"total_cost"`
}

type wireStats struct {
	ActiveSessions    flexInt `json:"active_sessions"`
	TotalTimeToday    flexInt `json:"total_time_today"`
	TotalRevenueToday flexInt `json:"total_revenue_today"`
}

type wireReport struct {
	Date     string        `json:"date"`
	Sessions []wireSession `json:"sessions"`
	Stats    struct {
		TotalSessions flexInt `json:"total_sessions"`
		TotalTime     flexInt `json:"total_time"`
		TotalRevenue  flexInt `json:"total_revenue"`
	} `json:"stats"`
}

type wireOperator struct {
	ID       flexID `json:"id"`
	Username string `json:"username"`
}

func (w wireDevice) toCore() *core.Device {
	status := core.DeviceStatus(w.Status)
	if status != core.DeviceStatusOccupied {
		status = core.DeviceStatusAvailable
	}
	return &core.Device{
		ID:            string(w.ID),
		Name:          w.Name,
		Status:        status,
		TotalPlayTime: int(w.TotalPlayTime.Value),
		TotalRevenue:  w.TotalRevenue.Value,
	}
}

func (w wireSession) toCore(loc *time.Location) (*core.Session, error) {
	start, err := parseTime(w.StartTime, loc)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", w.ID, err)
	}

	session := &core.Session{
		ID:         string(w.ID),
		DeviceID:   string(w.DeviceID),
		PlayerName: w.PlayerName,
		Type:       core.SessionType(w.Type),
		StartTime:  start,
		IsActive:   bool(w.IsActive),
		TotalCost:  w.TotalCost.Value,
	}
	if session.Type != core.SessionTypeUnlimited {
		session.Type = core.SessionTypeLimited
	}
	if session.Type == core.SessionTypeLimited && w.TimeLimit.Valid {
		limit := int(w.TimeLimit.Value)
		session.TimeLimit = &limit
	}
	if w.EndTime != nil && *w.EndTime != "" {
		end, err := parseTime(*w.EndTime, loc)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", w.ID, err)
		}
		session.EndTime = &end
	}
	// Active iff no end time
	if session.IsActive {
		session.EndTime = nil
	} else if session.EndTime == nil {
		end := start
		session.EndTime = &end
	}
	return session, nil
}

func (w wireReport) toCore(loc *time.Location) (*report.Report, error) {
	r := &report.Report{
		Date:     w.Date,
		Sessions: make([]*core.Session, 0, len(w.Sessions)),
		Stats: report.Summary{
			TotalSessions: int(w.Stats.TotalSessions.Value),
			TotalTime:     int(w.Stats.TotalTime.Value),
			TotalRevenue:  w.Stats.TotalRevenue.Value,
		},
	}
	for _, ws := range w.Sessions {
		session, err := ws.toCore(loc)
		if err != nil {
			return nil, err
		}
		r.Sessions = append(r.Sessions, session)
	}
	return r, nil
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
