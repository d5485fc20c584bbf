package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DeviceStatus represents whether a device can take a new session
type DeviceStatus string

const (
	DeviceStatusAvailable DeviceStatus = "available"
	DeviceStatusOccupied  DeviceStatus = "occupied"
)

// SessionType represents the billing mode of a session
type SessionType string

const (
	SessionTypeLimited   SessionType = "limited"
	SessionTypeUnlimited SessionType = "unlimited"
)

// Device represents a rentable console in the fixed pool
type Device struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        DeviceStatus `json:"status"`
	TotalPlayTime int          `json:"total_play_time"` // minutes, never decreases
	TotalRevenue  int64        `json:"total_revenue"`   // never decreases
}

// Session represents an active or closed rental session on a device
type Session struct {
	ID         string      `json:"id"`
	DeviceID   string      `json:"device_id"`
	PlayerName string      `json:"player_name"`
	Type       SessionType `json:"session_type"`
	TimeLimit  *int        `json:"time_limit"` // minutes; nil for unlimited sessions
	StartTime  time.Time   `json:"start_time"`
	EndTime    *time.Time  `json:"end_time"`
	IsActive   bool        `json:"is_active"`
	TotalCost  int64       `json:"total_cost"` // 0 while active
}

// Operator is the person logged in at the console
type Operator struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// Stats holds the derived aggregates for one calendar day
type Stats struct {
	ActiveSessions    int   `json:"active_sessions"`
	TotalTimeToday    int   `json:"total_time_today"`
	TotalRevenueToday int64 `json:"total_revenue_today"`
}

// Validation errors
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidPlayerName  = fmt.Errorf("%w: player name cannot be empty", ErrValidation)
	ErrInvalidSessionType = fmt.Errorf("%w: session type must be limited or unlimited", ErrValidation)
	ErrInvalidTimeLimit   = fmt.Errorf("%w: limited session requires a positive time limit", ErrValidation)
	ErrInvalidAmount      = fmt.Errorf("%w: additional minutes must be positive", ErrValidation)
	ErrNotLimited         = fmt.Errorf("%w: session is not limited", ErrValidation)
	ErrInvalidTheme       = fmt.Errorf("%w: theme must be light or dark", ErrValidation)
)

// Lookup and state errors
var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceUnavailable  = errors.New("device is not available")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session is already closed")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Source errors
var (
	ErrTransport   = errors.New("remote transport failure")
	ErrRejected    = errors.New("remote rejected the request")
	ErrPersistence = errors.New("local persistence failure")

	// ErrReloadPending means the remote accepted a start but the new
	// session could not be read back yet
	ErrReloadPending = errors.New("accepted by remote, reload pending")
)

// ParseSessionType converts a wire value to a SessionType
func ParseSessionType(s string) (SessionType, error) {
	switch SessionType(s) {
	case SessionTypeLimited, SessionTypeUnlimited:
		return SessionType(s), nil
	default:
		return "", ErrInvalidSessionType
	}
}

// IsAvailable returns true if a session can be started on the device
func (d *Device) IsAvailable() bool {
	return d.Status == DeviceStatusAvailable
}

// IsLimited returns true if the session has a time limit
func (s *Session) IsLimited() bool {
	return s.Type == SessionTypeLimited && s.TimeLimit != nil
}

// ElapsedMinutes returns whole minutes played, measured to now for an
// active session and to EndTime for a closed one. Never negative.
func (s *Session) ElapsedMinutes(now time.Time) int {
	end := now
	if !s.IsActive && s.EndTime != nil {
		end = *s.EndTime
	}
	elapsed := int(end.Sub(s.StartTime) / time.Minute)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RemainingMinutes returns the minutes left before the time limit, or -1
// for an unlimited session
func (s *Session) RemainingMinutes(now time.Time) int {
	if !s.IsLimited() {
		return -1
	}
	remaining := *s.TimeLimit - s.ElapsedMinutes(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Clone returns a deep copy of the session
func (s *Session) Clone() *Session {
	c := *s
	if s.TimeLimit != nil {
		limit := *s.TimeLimit
		c.TimeLimit = &limit
	}
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return &c
}

// Clone returns a copy of the device
func (d *Device) Clone() *Device {
	c := *d
	return &c
}

// ValidateStart checks the fields a new session needs
func ValidateStart(playerName string, sessionType SessionType, timeLimit *int) error {
	if strings.TrimSpace(playerName) == "" {
		return ErrInvalidPlayerName
	}
	if _, err := ParseSessionType(string(sessionType)); err != nil {
		return err
	}
	if sessionType == SessionTypeLimited && (timeLimit == nil || *timeLimit <= 0) {
		return ErrInvalidTimeLimit
	}
	return nil
}

// FormatMinutes renders a minute count as H:MM
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}
