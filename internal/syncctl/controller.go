package syncctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gamehall/internal/core"
	"gamehall/internal/metrics"
	"gamehall/internal/remote"
	"gamehall/internal/report"
	"gamehall/internal/storage"
	"gamehall/internal/timer"
)

// DefaultRefreshInterval is how often state is reloaded from the remote
const DefaultRefreshInterval = 30 * time.Second

// Themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Options holds the collaborators of a Controller
type Options struct {
	Store   *core.Store
	Tracker ExpiryTracker
	// Remote may be nil, in which case the controller stays disconnected
	Remote          Remote
	Cache           storage.Cache
	Auth            Authenticator
	Reports         *report.Generator
	Metrics         *metrics.Metrics
	DeviceCount     int
	RefreshInterval time.Duration
	Logger          *slog.Logger
}

// Controller routes every operator action to exactly one authoritative
// store. While connected it delegates to the remote backend and reloads
// the session store from it; while disconnected it mutates the session
// store and writes the full snapshot through to the local cache.
type Controller struct {
	// mu serializes actions and background refreshes
	mu sync.Mutex

	store           *core.Store
	tracker         ExpiryTracker
	remote          Remote
	cache           storage.Cache
	auth            Authenticator
	reports         *report.Generator
	metrics         *metrics.Metrics
	deviceCount     int
	refreshInterval time.Duration
	logger          *slog.Logger

	state sync.RWMutex
	mode  Mode
	user  *core.Operator
}

// New creates a controller in disconnected mode; call Init before use
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DeviceCount <= 0 {
		opts.DeviceCount = core.DefaultDeviceCount
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Reports == nil {
		opts.Reports = report.NewGenerator(opts.Store)
	}
	return &Controller{
		store:           opts.Store,
		tracker:         opts.Tracker,
		remote:          opts.Remote,
		cache:           opts.Cache,
		auth:            opts.Auth,
		reports:         opts.Reports,
		metrics:         opts.Metrics,
		deviceCount:     opts.DeviceCount,
		refreshInterval: opts.RefreshInterval,
		logger:          logger.With("component", "sync"),
		mode:            ModeDisconnected,
	}
}

// Init probes the remote once and loads state from whichever store is
// authoritative
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remote != nil {
		if err := c.remote.Probe(ctx); err != nil {
			c.logger.Warn("Remote unreachable, working offline", "error", err)
		} else if err := c.reload(ctx); err != nil {
			c.logger.Warn("Failed to load remote state, working offline", "error", err)
		} else {
			c.setMode(ModeConnected)
			return nil
		}
	}

	c.setMode(ModeDisconnected)
	return c.loadLocal(ctx)
}

// Mode returns the current connectivity mode
func (c *Controller) Mode() Mode {
	c.state.RLock()
	defer c.state.RUnlock()
	return c.mode
}

// CurrentUser returns the logged-in operator, or nil
func (c *Controller) CurrentUser() *core.Operator {
	c.state.RLock()
	defer c.state.RUnlock()
	if c.user == nil {
		return nil
	}
	user := *c.user
	return &user
}

// Login authenticates an operator against the authoritative source
func (c *Controller) Login(ctx context.Context, username, password string) (*core.Operator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, core.ErrInvalidCredentials
	}

	if c.Mode() == ModeConnected {
		operator, err := c.remote.Login(ctx, username, password)
		switch {
		case err == nil:
			c.setUser(operator)
			if err := c.reloadExclusive(ctx, ""); err != nil {
				c.fallback("login_reload", err)
			}
			return operator, nil
		case errors.Is(err, core.ErrTransport):
			c.fallback("login", err)
		case errors.Is(err, core.ErrRejected):
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidCredentials, err)
		default:
			return nil, err
		}
	}

	if c.auth == nil {
		return nil, core.ErrInvalidCredentials
	}
	operator, err := c.auth.Authenticate(username, password)
	if err != nil {
		return nil, err
	}

	previous := c.CurrentUser()
	c.setUser(operator)
	if err := c.persist(ctx); err != nil {
		c.setUser(previous)
		return nil, err
	}
	return operator, nil
}

// Logout clears the operator and every expiry flag
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous := c.CurrentUser()
	c.setUser(nil)
	c.tracker.Reset()

	if c.Mode() == ModeConnected {
		return nil
	}
	if err := c.persist(ctx); err != nil {
		c.setUser(previous)
		return err
	}
	return nil
}

// StartSession opens a session on an available device
func (c *Controller) StartSession(ctx context.Context, in StartInput) (*core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	in.PlayerName = strings.TrimSpace(in.PlayerName)
	if in.Type == core.SessionTypeUnlimited {
		in.TimeLimit = nil
	}
	if err := core.ValidateStart(in.PlayerName, in.Type, in.TimeLimit); err != nil {
		return nil, err
	}

	if c.Mode() == ModeConnected {
		err := c.remote.StartSession(ctx, remote.StartRequest{
			DeviceID:   in.DeviceID,
			PlayerName: in.PlayerName,
			Type:       in.Type,
			TimeLimit:  in.TimeLimit,
		})
		switch {
		case err == nil:
			c.metrics.SessionStarted(string(ModeConnected))
			if err := c.reloadExclusive(ctx, ""); err != nil {
				c.fallback("start_session_reload", err)
			}
			if session, ok := c.store.ActiveSessionForDevice(in.DeviceID); ok {
				return session, nil
			}
			return nil, fmt.Errorf("%w: device %s", core.ErrReloadPending, in.DeviceID)
		case errors.Is(err, core.ErrTransport):
			c.fallback("start_session", err)
		default:
			return nil, err
		}
	}

	session, err := c.mutateLocal(ctx, "", func() (*core.Session, error) {
		return c.store.StartSession(in.DeviceID, in.PlayerName, in.Type, in.TimeLimit)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.SessionStarted(string(ModeDisconnected))
	return session, nil
}

// EndSession closes an active session and finalizes its cost
func (c *Controller) EndSession(ctx context.Context, sessionID string) (*core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endSession(ctx, sessionID)
}

// ExtendSession raises the time limit of an active limited session
func (c *Controller) ExtendSession(ctx context.Context, sessionID string, additionalMinutes int) (*core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extendSession(ctx, sessionID, additionalMinutes)
}

// SwitchToUnlimited drops the time limit of an active session
func (c *Controller) SwitchToUnlimited(ctx context.Context, sessionID string) (*core.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switchToUnlimited(ctx, sessionID)
}

// Respond applies the operator's answer to an expiry event
func (c *Controller) Respond(ctx context.Context, resp timer.Response) (*core.Session, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch resp.Action {
	case timer.ActionStop:
		return c.endSession(ctx, resp.SessionID)
	case timer.ActionExtend:
		return c.extendSession(ctx, resp.SessionID, resp.Minutes)
	default:
		return c.switchToUnlimited(ctx, resp.SessionID)
	}
}

// Refresh reloads the session store from the remote while an operator is
// logged in and the remote is authoritative. Disconnected refreshes do not
// re-probe the remote.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.CurrentUser() == nil || c.Mode() != ModeConnected {
		return nil
	}

	if err := c.reloadExclusive(ctx, ""); err != nil {
		if errors.Is(err, core.ErrTransport) {
			c.fallback("refresh", err)
			return nil
		}
		return err
	}
	return nil
}

// Run refreshes on a ticker until ctx is done
func (c *Controller) Run(ctx context.Context) {
	c.logger.Info("Background refresh started", "interval", c.refreshInterval)
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("Refresh failed", "error", err)
			}
		case <-ctx.Done():
			c.logger.Info("Background refresh stopped")
			return
		}
	}
}

// Stats returns today's aggregates from the authoritative source
func (c *Controller) Stats(ctx context.Context) (*core.Stats, error) {
	if c.Mode() == ModeConnected {
		stats, err := c.remote.Stats(ctx)
		if err == nil {
			return stats, nil
		}
		if !errors.Is(err, core.ErrTransport) {
			return nil, err
		}
		c.fallback("get_stats", err)
	}
	return c.store.Stats(c.store.Now()), nil
}

// DailyReport returns the report for a YYYY-MM-DD day
func (c *Controller) DailyReport(ctx context.Context, day string) (*report.Report, error) {
	if _, err := report.ParseDay(day, c.store.Location()); err != nil {
		return nil, err
	}

	if c.Mode() == ModeConnected {
		r, err := c.remote.DailyReport(ctx, day)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, core.ErrTransport) {
			return nil, err
		}
		c.fallback("get_daily_report", err)
	}
	return c.reports.DailyForDay(day)
}

// ExportReport renders the report of a day in the given format
func (c *Controller) ExportReport(ctx context.Context, day string, format report.Format) ([]byte, error) {
	r, err := c.DailyReport(ctx, day)
	if err != nil {
		return nil, err
	}
	return report.Render(format, r, c.store.Devices(), c.store.CostModel(), c.store.Now())
}

// Devices returns every device with its live session figures
func (c *Controller) Devices(ctx context.Context) []*DeviceView {
	return buildViews(c.store.Snapshot(), c.store.CostModel(), c.store.Now())
}

// Theme returns the stored theme preference, light by default
func (c *Controller) Theme(ctx context.Context) (string, error) {
	theme, err := c.cache.GetTheme(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return ThemeLight, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	return theme, nil
}

// SetTheme stores the theme preference
func (c *Controller) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return core.ErrInvalidTheme
	}
	if err := c.cache.SaveTheme(ctx, theme); err != nil {
		c.metrics.PersistenceFailed()
		return fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	return nil
}

func (c *Controller) endSession(ctx context.Context, sessionID string) (*core.Session, error) {
	if c.Mode() == ModeConnected {
		prior, _ := c.store.GetSession(sessionID)
		cost, err := c.remote.EndSession(ctx, sessionID)
		switch {
		case err == nil:
			c.metrics.SessionEnded(string(ModeConnected), cost)
			if err := c.reloadExclusive(ctx, sessionID); err != nil {
				c.fallback("end_session_reload", err)
			}
			now := c.store.Now()
			if prior == nil {
				prior = &core.Session{ID: sessionID}
			}
			prior.IsActive = false
			prior.EndTime = &now
			prior.TotalCost = cost
			return prior, nil
		case errors.Is(err, core.ErrTransport):
			c.fallback("end_session", err)
		default:
			return nil, err
		}
	}

	session, err := c.mutateLocal(ctx, sessionID, func() (*core.Session, error) {
		return c.store.EndSession(sessionID)
	})
	if err != nil {
		return nil, err
	}
	c.metrics.SessionEnded(string(ModeDisconnected), session.TotalCost)
	return session, nil
}

func (c *Controller) extendSession(ctx context.Context, sessionID string, additionalMinutes int) (*core.Session, error) {
	if additionalMinutes <= 0 {
		return nil, core.ErrInvalidAmount
	}

	if c.Mode() == ModeConnected {
		err := c.remote.ExtendSession(ctx, sessionID, additionalMinutes)
		switch {
		case err == nil:
			return c.afterRemoteMutation(ctx, "extend_session", sessionID)
		case errors.Is(err, core.ErrTransport):
			c.fallback("extend_session", err)
		default:
			return nil, err
		}
	}

	return c.mutateLocal(ctx, sessionID, func() (*core.Session, error) {
		return c.store.ExtendSession(sessionID, additionalMinutes)
	})
}

func (c *Controller) switchToUnlimited(ctx context.Context, sessionID string) (*core.Session, error) {
	if c.Mode() == ModeConnected {
		err := c.remote.SwitchToUnlimited(ctx, sessionID)
		switch {
		case err == nil:
			return c.afterRemoteMutation(ctx, "switch_to_unlimited", sessionID)
		case errors.Is(err, core.ErrTransport):
			c.fallback("switch_to_unlimited", err)
		default:
			return nil, err
		}
	}

	return c.mutateLocal(ctx, sessionID, func() (*core.Session, error) {
		return c.store.SwitchToUnlimited(sessionID)
	})
}

// afterRemoteMutation reloads after the remote accepted an action on an
// existing session and returns the reloaded session when it is known
func (c *Controller) afterRemoteMutation(ctx context.Context, action, sessionID string) (*core.Session, error) {
	if err := c.reloadExclusive(ctx, sessionID); err != nil {
		c.fallback(action+"_reload", err)
	}
	session, err := c.store.GetSession(sessionID)
	if err != nil {
		return &core.Session{ID: sessionID, IsActive: true}, nil
	}
	return session, nil
}

// mutateLocal applies fn to the session store and writes the snapshot
// through. A failed write restores the store to its prior state. The
// expiry flag of clearID, if any, is cleared on success.
func (c *Controller) mutateLocal(ctx context.Context, clearID string, fn func() (*core.Session, error)) (*core.Session, error) {
	var session *core.Session
	var err error

	c.tracker.Exclusive(func() {
		before := c.store.Snapshot()

		session, err = fn()
		if err != nil {
			return
		}
		if perr := c.persist(ctx); perr != nil {
			c.store.Restore(before)
			session, err = nil, perr
			return
		}
		if clearID != "" {
			c.tracker.Clear(clearID)
		}
	})

	return session, err
}

// reloadExclusive reloads from the remote with timer passes held off, then
// clears the expiry flag of clearID
func (c *Controller) reloadExclusive(ctx context.Context, clearID string) error {
	var err error
	c.tracker.Exclusive(func() {
		err = c.reload(ctx)
		if clearID != "" {
			c.tracker.Clear(clearID)
		}
	})
	return err
}

// reload replaces the session store with the remote devices and active sessions
func (c *Controller) reload(ctx context.Context) error {
	devices, err := c.remote.Devices(ctx)
	if err != nil {
		return err
	}
	sessions, err := c.remote.ActiveSessions(ctx)
	if err != nil {
		return err
	}
	c.store.Load(devices, sessions)
	return nil
}

// loadLocal loads the local snapshot, or the default device pool when
// nothing was saved yet
func (c *Controller) loadLocal(ctx context.Context) error {
	snapshot, err := c.cache.LoadSnapshot(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Info("No local data, creating default devices", "count", c.deviceCount)
		c.store.Load(core.DefaultDevices(c.deviceCount), nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}

	devices := snapshot.Devices
	if len(devices) == 0 {
		devices = core.DefaultDevices(c.deviceCount)
	}
	c.store.Load(devices, snapshot.Sessions)
	c.setUser(snapshot.CurrentUser)

	c.logger.Info("Loaded local data",
		"devices", len(devices),
		"sessions", len(snapshot.Sessions))
	return nil
}

// persist writes the full snapshot to the local cache
func (c *Controller) persist(ctx context.Context) error {
	snapshot := c.store.Snapshot()
	err := c.cache.SaveSnapshot(ctx, &storage.Snapshot{
		Devices:     snapshot.Devices,
		Sessions:    snapshot.Sessions,
		CurrentUser: c.CurrentUser(),
	})
	if err != nil {
		c.metrics.PersistenceFailed()
		c.logger.Error("Failed to save local data", "error", err)
		return fmt.Errorf("%w: %v", core.ErrPersistence, err)
	}
	return nil
}

// fallback flips to disconnected after a remote failure
func (c *Controller) fallback(action string, err error) {
	c.logger.Warn("Remote call failed, switching to offline mode",
		"action", action,
		"error", err)
	c.metrics.Fallback(action)
	c.setMode(ModeDisconnected)
}

func (c *Controller) setMode(mode Mode) {
	c.state.Lock()
	changed := c.mode != mode
	c.mode = mode
	c.state.Unlock()

	c.metrics.SetConnected(mode == ModeConnected)
	if changed {
		c.logger.Info("Mode changed", "mode", mode)
	}
}

func (c *Controller) setUser(user *core.Operator) {
	c.state.Lock()
	defer c.state.Unlock()
	if user == nil {
		c.user = nil
		return
	}
	u := *user
	c.user = &u
}
