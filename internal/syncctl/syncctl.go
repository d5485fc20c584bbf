package syncctl

import (
	"context"

	"gamehall/internal/core"
	"gamehall/internal/remote"
	"gamehall/internal/report"
	"gamehall/internal/timer"
)

// Mode says which store is authoritative
type Mode string

const (
	ModeConnected    Mode = "connected"
	ModeDisconnected Mode = "disconnected"
)

// Remote is the backend the controller delegates to while connected
type Remote interface {
	Probe(ctx context.Context) error
	Devices(ctx context.Context) ([]*core.Device, error)
	ActiveSessions(ctx context.Context) ([]*core.Session, error)
	Stats(ctx context.Context) (*core.Stats, error)
	DailyReport(ctx context.Context, day string) (*report.Report, error)
	Login(ctx context.Context, username, password string) (*core.Operator, error)
	StartSession(ctx context.Context, req remote.StartRequest) error
	EndSession(ctx context.Context, sessionID string) (int64, error)
	ExtendSession(ctx context.Context, sessionID string, additionalMinutes int) error
	SwitchToUnlimited(ctx context.Context, sessionID string) error
}

// ExpiryTracker is the part of the timer engine the controller drives
type ExpiryTracker interface {
	Clear(sessionID string)
	Reset()
	Exclusive(fn func())
}

// Authenticator checks operator credentials while disconnected
type Authenticator interface {
	Authenticate(username, password string) (*core.Operator, error)
}

// StartInput holds the fields of a new session
type StartInput struct {
	DeviceID   string           `json:"device_id"`
	PlayerName string           `json:"player_name"`
	Type       core.SessionType `json:"session_type"`
	TimeLimit  *int             `json:"time_limit"`
}

// Console is the set of operator actions exposed to the UI
type Console interface {
	Login(ctx context.Context, username, password string) (*core.Operator, error)
	Logout(ctx context.Context) error
	StartSession(ctx context.Context, in StartInput) (*core.Session, error)
	EndSession(ctx context.Context, sessionID string) (*core.Session, error)
	ExtendSession(ctx context.Context, sessionID string, additionalMinutes int) (*core.Session, error)
	SwitchToUnlimited(ctx context.Context, sessionID string) (*core.Session, error)
	Respond(ctx context.Context, resp timer.Response) (*core.Session, error)
	Refresh(ctx context.Context) error
	Stats(ctx context.Context) (*core.Stats, error)
	DailyReport(ctx context.Context, day string) (*report.Report, error)
	ExportReport(ctx context.Context, day string, format report.Format) ([]byte, error)
	Devices(ctx context.Context) []*DeviceView
	Mode() Mode
	CurrentUser() *core.Operator
	Theme(ctx context.Context) (string, error)
	SetTheme(ctx context.Context, theme string) error
}
