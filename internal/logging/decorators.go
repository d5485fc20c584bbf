package logging

import (
	"context"
	"log/slog"
	"time"

	"gamehall/internal/core"
	"gamehall/internal/report"
	"gamehall/internal/syncctl"
	"gamehall/internal/timer"
)

// ConsoleLogger wraps a syncctl.Console and logs every operator action
type ConsoleLogger struct {
	console syncctl.Console
	logger  *slog.Logger
}

// NewConsoleLogger creates a new logging decorator for the operator console
func NewConsoleLogger(console syncctl.Console, logger *slog.Logger) syncctl.Console {
	return &ConsoleLogger{
		console: console,
		logger:  logger.With("interface", "Console"),
	}
}

// done logs the outcome of a call; args identify the call
func (l *ConsoleLogger) done(method string, start time.Time, err error, args ...any) {
	args = append(args, "mode", l.console.Mode(), "duration", time.Since(start))
	if err != nil {
		l.logger.Error(method+" failed", append(args, "error", err)...)
		return
	}
	l.logger.Info(method+" completed", args...)
}

func (l *ConsoleLogger) Login(ctx context.Context, username, password string) (*core.Operator, error) {
	start := time.Now()
	l.logger.Info("Login called", "username", username)

	operator, err := l.console.Login(ctx, username, password)
	l.done("Login", start, err, "username", username)
	return operator, err
}

func (l *ConsoleLogger) Logout(ctx context.Context) error {
	start := time.Now()
	l.logger.Info("Logout called")

	err := l.console.Logout(ctx)
	l.done("Logout", start, err)
	return err
}

func (l *ConsoleLogger) StartSession(ctx context.Context, in syncctl.StartInput) (*core.Session, error) {
	start := time.Now()
	l.logger.Info("StartSession called",
		"device_id", in.DeviceID,
		"player_name", in.PlayerName,
		"session_type", in.Type)

	session, err := l.console.StartSession(ctx, in)
	if err != nil {
		l.done("StartSession", start, err, "device_id", in.DeviceID)
		return nil, err
	}

	l.done("StartSession", start, nil,
		"device_id", in.DeviceID,
		"session_id", session.ID)
	return session, nil
}

func (l *ConsoleLogger) EndSession(ctx context.Context, sessionID string) (*core.Session, error) {
	start := time.Now()
	l.logger.Info("EndSession called", "session_id", sessionID)

	session, err := l.console.EndSession(ctx, sessionID)
	if err != nil {
		l.done("EndSession", start, err, "session_id", sessionID)
		return nil, err
	}

	l.done("EndSession", start, nil,
		"session_id", sessionID,
		"total_cost", session.TotalCost)
	return session, nil
}

func (l *ConsoleLogger) ExtendSession(ctx context.Context, sessionID string, additionalMinutes int) (*core.Session, error) {
	start := time.Now()
	l.logger.Info("ExtendSession called",
		"session_id", sessionID,
		"additional_minutes", additionalMinutes)

	session, err := l.console.ExtendSession(ctx, sessionID, additionalMinutes)
	l.done("ExtendSession", start, err,
		"session_id", sessionID,
		"additional_minutes", additionalMinutes)
	return session, err
}

func (l *ConsoleLogger) SwitchToUnlimited(ctx context.Context, sessionID string) (*core.Session, error) {
	start := time.Now()
	l.logger.Info("SwitchToUnlimited called", "session_id", sessionID)

	session, err := l.console.SwitchToUnlimited(ctx, sessionID)
	l.done("SwitchToUnlimited", start, err, "session_id", sessionID)
	return session, err
}

func (l *ConsoleLogger) Respond(ctx context.Context, resp timer.Response) (*core.Session, error) {
	start := time.Now()
	l.logger.Info("Respond called",
		"session_id", resp.SessionID,
		"action", resp.Action,
		"minutes", resp.Minutes)

	session, err := l.console.Respond(ctx, resp)
	l.done("Respond", start, err,
		"session_id", resp.SessionID,
		"action", resp.Action)
	return session, err
}

func (l *ConsoleLogger) Refresh(ctx context.Context) error {
	start := time.Now()
	err := l.console.Refresh(ctx)
	if err != nil {
		l.done("Refresh", start, err)
		return err
	}
	l.logger.Debug("Refresh completed", "duration", time.Since(start))
	return nil
}

func (l *ConsoleLogger) Stats(ctx context.Context) (*core.Stats, error) {
	start := time.Now()
	stats, err := l.console.Stats(ctx)
	if err != nil {
		l.done("Stats", start, err)
	}
	return stats, err
}

func (l *ConsoleLogger) DailyReport(ctx context.Context, day string) (*report.Report, error) {
	start := time.Now()
	l.logger.Info("DailyReport called", "date", day)

	r, err := l.console.DailyReport(ctx, day)
	if err != nil {
		l.done("DailyReport", start, err, "date", day)
		return nil, err
	}

	l.done("DailyReport", start, nil,
		"date", day,
		"sessions", len(r.Sessions))
	return r, nil
}

func (l *ConsoleLogger) ExportReport(ctx context.Context, day string, format report.Format) ([]byte, error) {
	start := time.Now()
	l.logger.Info("ExportReport called", "date", day, "format", format)

	out, err := l.console.ExportReport(ctx, day, format)
	l.done("ExportReport", start, err,
		"date", day,
		"format", format,
		"bytes", len(out))
	return out, err
}

// The remaining methods are reads polled by the UI and are not logged

func (l *ConsoleLogger) Devices(ctx context.Context) []*syncctl.DeviceView {
	return l.console.Devices(ctx)
}

func (l *ConsoleLogger) Mode() syncctl.Mode {
	return l.console.Mode()
}

func (l *ConsoleLogger) CurrentUser() *core.Operator {
	return l.console.CurrentUser()
}

func (l *ConsoleLogger) Theme(ctx context.Context) (string, error) {
	return l.console.Theme(ctx)
}

func (l *ConsoleLogger) SetTheme(ctx context.Context, theme string) error {
	start := time.Now()
	err := l.console.SetTheme(ctx, theme)
	l.done("SetTheme", start, err, "theme", theme)
	return err
}
