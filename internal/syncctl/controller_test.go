package syncctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gamehall/internal/core"
	"gamehall/internal/metrics"
	"gamehall/internal/remote"
	"gamehall/internal/report"
	"gamehall/internal/storage"
	"gamehall/internal/timer"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int {
	return &v
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRemote is an in-memory backend; errs overrides the result of an action
type fakeRemote struct {
	mu       sync.Mutex
	clock    core.Clock
	devices  []*core.Device
	sessions []*core.Session
	errs     map[string]error
	calls    map[string]int
	endCost  int64
}

func newFakeRemote(clock core.Clock) *fakeRemote {
	return &fakeRemote{
		clock:   clock,
		devices: core.DefaultDevices(3),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
		endCost: 4500,
	}
}

func (f *fakeRemote) call(action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[action]++
	return f.errs[action]
}

func (f *fakeRemote) count(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[action]
}

func (f *fakeRemote) fail(action string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[action] = err
}

func (f *fakeRemote) Probe(ctx context.Context) error {
	return f.call(remote.ActionGetStats)
}

func (f *fakeRemote) Devices(ctx context.Context) ([]*core.Device, error) {
	if err := f.call(remote.ActionGetDevices); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*core.Device
	for _, d := range f.devices {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (f *fakeRemote) ActiveSessions(ctx context.Context) ([]*core.Session, error) {
	if err := f.call(remote.ActionGetActiveSessions); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*core.Session
	for _, s := range f.sessions {
		if s.IsActive {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) Stats(ctx context.Context) (*core.Stats, error) {
	if err := f.call(remote.ActionGetStats); err != nil {
		return nil, err
	}
	return &core.Stats{ActiveSessions: 42}, nil
}

func (f *fakeRemote) DailyReport(ctx context.Context, day string) (*report.Report, error) {
	if err := f.call(remote.ActionGetDailyReport); err != nil {
		return nil, err
	}
	return &report.Report{Date: day, Sessions: []*core.Session{}, Stats: report.Summary{TotalSessions: 7}}, nil
}

func (f *fakeRemote) Login(ctx context.Context, username, password string) (*core.Operator, error) {
	if err := f.call(remote.ActionLogin); err != nil {
		return nil, err
	}
	return &core.Operator{ID: "9", Username: username}, nil
}

func (f *fakeRemote) StartSession(ctx context.Context, req remote.StartRequest) error {
	if err := f.call(remote.ActionStartSession); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, &core.Session{
		ID:         fmt.Sprintf("%d", len(f.sessions)+1),
		DeviceID:   req.DeviceID,
		PlayerName: req.PlayerName,
		Type:       req.Type,
		TimeLimit:  req.TimeLimit,
		StartTime:  f.clock.Now(),
		IsActive:   true,
	})
	for _, d := range f.devices {
		if d.ID == req.DeviceID {
			d.Status = core.DeviceStatusOccupied
		}
	}
	return nil
}

func (f *fakeRemote) EndSession(ctx context.Context, sessionID string) (int64, error) {
	if err := f.call(remote.ActionEndSession); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == sessionID {
			now := f.clock.Now()
			s.IsActive = false
			s.EndTime = &now
			s.TotalCost = f.endCost
		}
	}
	return f.endCost, nil
}

func (f *fakeRemote) ExtendSession(ctx context.Context, sessionID string, additionalMinutes int) error {
	if err := f.call(remote.ActionExtendSession); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == sessionID && s.TimeLimit != nil {
			limit := *s.TimeLimit + additionalMinutes
			s.TimeLimit = &limit
		}
	}
	return nil
}

func (f *fakeRemote) SwitchToUnlimited(ctx context.Context, sessionID string) error {
	return f.call(remote.ActionSwitchToUnlimited)
}

// memCache is an in-memory storage.Cache
type memCache struct {
	mu       sync.Mutex
	snapshot *storage.Snapshot
	theme    string
	saveErr  error
	saves    int
}

func (m *memCache) SaveSnapshot(ctx context.Context, snapshot *storage.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	copied := &storage.Snapshot{CurrentUser: snapshot.CurrentUser}
	for _, d := range snapshot.Devices {
		copied.Devices = append(copied.Devices, d.Clone())
	}
	for _, s := range snapshot.Sessions {
		copied.Sessions = append(copied.Sessions, s.Clone())
	}
	m.snapshot = copied
	return nil
}

func (m *memCache) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, storage.ErrNotFound
	}
	return m.snapshot, nil
}

func (m *memCache) GetTheme(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.theme == "" {
		return "", storage.ErrNotFound
	}
	return m.theme, nil
}

func (m *memCache) SaveTheme(ctx context.Context, theme string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.theme = theme
	return nil
}

func (m *memCache) Close() error {
	return nil
}

type fixture struct {
	ctrl    *Controller
	store   *core.Store
	engine  *timer.Engine
	clock   *core.MockClock
	remote  *fakeRemote
	cache   *memCache
	metrics *metrics.Metrics
}

type fixtureOption func(*Options)

func withoutRemote() fixtureOption {
	return func(o *Options) { o.Remote = nil }
}

func setupFixture(t *testing.T, cache *memCache, opts ...fixtureOption) *fixture {
	t.Helper()
	clock := core.NewMockClock(t0)
	cost, err := core.NewCostModel(core.DefaultHourlyRate)
	require.NoError(t, err)
	store := core.NewStore(cost, clock, time.UTC)
	m := metrics.New()
	engine := timer.NewEngine(store, clock, nil, time.Second, m, testLogger())

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := NewLocalAuthenticator(DefaultUsername, string(hash))
	require.NoError(t, err)

	if cache == nil {
		cache = &memCache{}
	}
	fake := newFakeRemote(clock)

	options := Options{
		Store:   store,
		Tracker: engine,
		Remote:  fake,
		Cache:   cache,
		Auth:    auth,
		Metrics: m,
		Logger:  testLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &fixture{
		ctrl:    New(options),
		store:   store,
		engine:  engine,
		clock:   clock,
		remote:  fake,
		cache:   cache,
		metrics: m,
	}
}

func TestController_InitWithoutRemoteCreatesDefaultDevices(t *testing.T) {
	f := setupFixture(t, nil, withoutRemote())

	require.NoError(t, f.ctrl.Init(context.Background()))
	assert.Equal(t, ModeDisconnected, f.ctrl.Mode())

	devices := f.store.Devices()
	require.Len(t, devices, core.DefaultDeviceCount)
	assert.Equal(t, "PS4 #6", devices[5].Name)
	assert.Nil(t, f.ctrl.CurrentUser())
}

func TestController_InitConnected(t *testing.T) {
	f := setupFixture(t, nil)

	require.NoError(t, f.ctrl.Init(context.Background()))
	assert.Equal(t, ModeConnected, f.ctrl.Mode())
	assert.Len(t, f.store.Devices(), 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Connected))
}

func TestController_InitRemoteDownLoadsLocalSnapshot(t *testing.T) {
	end := t0.Add(-time.Hour)
	cache := &memCache{snapshot: &storage.Snapshot{
		Devices: []*core.Device{{ID: "1", Name: "PS4 #1", Status: core.DeviceStatusAvailable, TotalPlayTime: 60, TotalRevenue: 6000}},
		Sessions: []*core.Session{{
			ID: "old", DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeUnlimited,
			StartTime: t0.Add(-2 * time.Hour), EndTime: &end, TotalCost: 6000,
		}},
		CurrentUser: &core.Operator{ID: "local", Username: "admin"},
	}}
	f := setupFixture(t, cache)
	f.remote.fail(remote.ActionGetStats, fmt.Errorf("%w: connection refused", core.ErrTransport))

	require.NoError(t, f.ctrl.Init(context.Background()))
	assert.Equal(t, ModeDisconnected, f.ctrl.Mode())
	assert.Len(t, f.store.Devices(), 1)
	assert.Len(t, f.store.Sessions(), 1)
	require.NotNil(t, f.ctrl.CurrentUser())
	assert.Equal(t, "admin", f.ctrl.CurrentUser().Username)
}

func TestController_TransportFailureFallsBackOnce(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))
	require.Equal(t, ModeConnected, f.ctrl.Mode())

	f.remote.fail(remote.ActionStartSession, fmt.Errorf("%w: timeout", core.ErrTransport))

	session, err := f.ctrl.StartSession(ctx, StartInput{
		DeviceID: "2", PlayerName: "  Ali  ", Type: core.SessionTypeLimited, TimeLimit: intPtr(30),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ali", session.PlayerName)
	assert.Equal(t, ModeDisconnected, f.ctrl.Mode())

	// One remote attempt, one local mutation, one write-through
	assert.Equal(t, 1, f.remote.count(remote.ActionStartSession))
	active := f.store.ActiveSessions()
	require.Len(t, active, 1)
	assert.Equal(t, session.ID, active[0].ID)
	assert.Equal(t, 1, f.cache.saves)
	require.NotNil(t, f.cache.snapshot)
	assert.Len(t, f.cache.snapshot.Sessions, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Fallbacks.WithLabelValues("start_session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsStarted.WithLabelValues("disconnected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Connected))

	// Later actions stay local without touching the remote
	_, err = f.ctrl.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.remote.count(remote.ActionEndSession))
}

func TestController_RejectionDoesNotFallBack(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	f.remote.fail(remote.ActionStartSession, fmt.Errorf("%w: device busy", core.ErrRejected))

	_, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeUnlimited})
	assert.ErrorIs(t, err, core.ErrRejected)
	assert.Equal(t, ModeConnected, f.ctrl.Mode())
	assert.Empty(t, f.store.ActiveSessions())
	assert.Zero(t, f.cache.saves)
}

func TestController_ValidationBeforeRemote(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	_, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: " ", Type: core.SessionTypeLimited, TimeLimit: intPtr(10)})
	assert.ErrorIs(t, err, core.ErrInvalidPlayerName)

	_, err = f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeLimited})
	assert.ErrorIs(t, err, core.ErrInvalidTimeLimit)

	_, err = f.ctrl.ExtendSession(ctx, "1", 0)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	assert.Zero(t, f.remote.count(remote.ActionStartSession))
	assert.Zero(t, f.remote.count(remote.ActionExtendSession))
}

func TestController_ConnectedActionsReloadFromRemote(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	session, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeLimited, TimeLimit: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, "1", session.ID)

	device, err := f.store.GetDevice("1")
	require.NoError(t, err)
	assert.Equal(t, core.DeviceStatusOccupied, device.Status)

	f.clock.Advance(2 * time.Minute)
	events, _ := f.engine.Evaluate()
	require.Len(t, events, 1)

	extended, err := f.ctrl.ExtendSession(ctx, session.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, extended.TimeLimit)
	assert.Equal(t, 6, *extended.TimeLimit)
	assert.False(t, f.engine.Flagged(session.ID))

	ended, err := f.ctrl.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, ended.IsActive)
	assert.Equal(t, int64(4500), ended.TotalCost)
	assert.Empty(t, f.store.ActiveSessions())

	assert.Zero(t, f.cache.saves)
	assert.Equal(t, ModeConnected, f.ctrl.Mode())
}

func TestController_ReloadFailureAfterRemoteSuccess(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	f.remote.fail(remote.ActionGetDevices, fmt.Errorf("%w: reset", core.ErrTransport))

	session, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeUnlimited})
	assert.ErrorIs(t, err, core.ErrReloadPending)
	assert.Nil(t, session)
	assert.Equal(t, ModeDisconnected, f.ctrl.Mode())

	// The action is not re-applied locally
	assert.Equal(t, 1, f.remote.count(remote.ActionStartSession))
	assert.Empty(t, f.store.ActiveSessions())
	assert.Zero(t, f.cache.saves)
}

func TestController_OfflineCyclesPersistTotals(t *testing.T) {
	cache := &memCache{}
	f := setupFixture(t, cache, withoutRemote())
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	first, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeLimited, TimeLimit: intPtr(60)})
	require.NoError(t, err)
	f.clock.Advance(45 * time.Minute)
	ended, err := f.ctrl.EndSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), ended.TotalCost)

	f.clock.Advance(15 * time.Minute)
	second, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Omar", Type: core.SessionTypeUnlimited})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	ended, err = f.ctrl.EndSession(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), ended.TotalCost)

	assert.Equal(t, 4, cache.saves)

	// A fresh process over the same cache sees the same totals
	g := setupFixture(t, cache, withoutRemote())
	require.NoError(t, g.ctrl.Init(ctx))

	device, err := g.store.GetDevice("1")
	require.NoError(t, err)
	assert.Equal(t, core.DeviceStatusAvailable, device.Status)
	assert.Equal(t, 75, device.TotalPlayTime)
	assert.Equal(t, int64(7500), device.TotalRevenue)
	assert.Len(t, g.store.Sessions(), 2)

	_, err = g.ctrl.EndSession(ctx, first.ID)
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}

func TestController_PersistenceFailureRollsBack(t *testing.T) {
	cache := &memCache{}
	f := setupFixture(t, cache, withoutRemote())
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	session, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeLimited, TimeLimit: intPtr(30)})
	require.NoError(t, err)
	before := f.store.Snapshot()

	cache.saveErr = errors.New("disk full")

	_, err = f.ctrl.StartSession(ctx, StartInput{DeviceID: "2", PlayerName: "Omar", Type: core.SessionTypeUnlimited})
	assert.ErrorIs(t, err, core.ErrPersistence)

	f.clock.Advance(20 * time.Minute)
	_, err = f.ctrl.EndSession(ctx, session.ID)
	assert.ErrorIs(t, err, core.ErrPersistence)

	_, err = f.ctrl.ExtendSession(ctx, session.ID, 10)
	assert.ErrorIs(t, err, core.ErrPersistence)

	assert.Equal(t, before, f.store.Snapshot())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.PersistenceFailures))

	cache.saveErr = nil
	ended, err := f.ctrl.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ended.TotalCost)
}

func TestController_LocalLogin(t *testing.T) {
	cache := &memCache{}
	f := setupFixture(t, cache, withoutRemote())
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	_, err := f.ctrl.Login(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	_, err = f.ctrl.Login(ctx, "root", DefaultPassword)
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	_, err = f.ctrl.Login(ctx, "", "")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	assert.Nil(t, f.ctrl.CurrentUser())

	operator, err := f.ctrl.Login(ctx, "admin", DefaultPassword)
	require.NoError(t, err)
	assert.Equal(t, "admin", operator.Username)
	require.NotNil(t, cache.snapshot.CurrentUser)
	assert.Equal(t, "admin", cache.snapshot.CurrentUser.Username)

	require.NoError(t, f.ctrl.Logout(ctx))
	assert.Nil(t, f.ctrl.CurrentUser())
	assert.Nil(t, cache.snapshot.CurrentUser)
}

func TestController_RemoteLogin(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	operator, err := f.ctrl.Login(ctx, "boss", "pw")
	require.NoError(t, err)
	assert.Equal(t, &core.Operator{ID: "9", Username: "boss"}, operator)

	f.remote.fail(remote.ActionLogin, fmt.Errorf("%w: bad credentials", core.ErrRejected))
	_, err = f.ctrl.Login(ctx, "boss", "nope")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
	assert.ErrorIs(t, err, core.ErrRejected)
	assert.Equal(t, ModeConnected, f.ctrl.Mode())

	// Remote down: the local operator can still log in
	f.remote.fail(remote.ActionLogin, fmt.Errorf("%w: refused", core.ErrTransport))
	operator, err = f.ctrl.Login(ctx, "admin", DefaultPassword)
	require.NoError(t, err)
	assert.Equal(t, "local", operator.ID)
	assert.Equal(t, ModeDisconnected, f.ctrl.Mode())
}

func TestController_Respond(t *testing.T) {
	f := setupFixture(t, nil, withoutRemote())
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	session, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeLimited, TimeLimit: intPtr(1)})
	require.NoError(t, err)

	f.clock.Set(t0.Add(61 * time.Second))
	events, _ := f.engine.Evaluate()
	require.Len(t, events, 1)
	assert.Equal(t, "PS4 #1", events[0].DeviceName)

	_, err = f.ctrl.Respond(ctx, timer.Response{SessionID: session.ID, Action: timer.ActionExtend})
	assert.ErrorIs(t, err, timer.ErrMissingMinutes)

	extended, err := f.ctrl.Respond(ctx, timer.Response{SessionID: session.ID, Action: timer.ActionExtend, Minutes: 5})
	require.NoError(t, err)
	assert.Equal(t, 6, *extended.TimeLimit)
	assert.False(t, f.engine.Flagged(session.ID))

	f.clock.Set(t0.Add(70 * time.Second))
	events, _ = f.engine.Evaluate()
	assert.Empty(t, events)

	f.clock.Set(t0.Add(365 * time.Second))
	events, _ = f.engine.Evaluate()
	require.Len(t, events, 1)

	switched, err := f.ctrl.Respond(ctx, timer.Response{SessionID: session.ID, Action: timer.ActionUnlimited})
	require.NoError(t, err)
	assert.Equal(t, core.SessionTypeUnlimited, switched.Type)
	assert.Nil(t, switched.TimeLimit)
	assert.False(t, f.engine.Flagged(session.ID))

	ended, err := f.ctrl.Respond(ctx, timer.Response{SessionID: session.ID, Action: timer.ActionStop})
	require.NoError(t, err)
	assert.False(t, ended.IsActive)
	assert.Equal(t, int64(600), ended.TotalCost)
}

func TestController_LogoutResetsFlags(t *testing.T) {
	f := setupFixture(t, nil, withoutRemote())
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	session, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeLimited, TimeLimit: intPtr(1)})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	_, _ = f.engine.Evaluate()
	require.True(t, f.engine.Flagged(session.ID))

	require.NoError(t, f.ctrl.Logout(ctx))
	assert.False(t, f.engine.Flagged(session.ID))
}

func TestController_Refresh(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))
	loads := f.remote.count(remote.ActionGetDevices)

	// Not logged in: nothing happens
	require.NoError(t, f.ctrl.Refresh(ctx))
	assert.Equal(t, loads, f.remote.count(remote.ActionGetDevices))

	_, err := f.ctrl.Login(ctx, "boss", "pw")
	require.NoError(t, err)
	loads = f.remote.count(remote.ActionGetDevices)

	require.NoError(t, f.ctrl.Refresh(ctx))
	assert.Equal(t, loads+1, f.remote.count(remote.ActionGetDevices))

	f.remote.fail(remote.ActionGetDevices, fmt.Errorf("%w: refused", core.ErrTransport))
	require.NoError(t, f.ctrl.Refresh(ctx))
	assert.Equal(t, ModeDisconnected, f.ctrl.Mode())

	// Disconnected refreshes never re-probe
	probes := f.remote.count(remote.ActionGetStats)
	loads = f.remote.count(remote.ActionGetDevices)
	require.NoError(t, f.ctrl.Refresh(ctx))
	assert.Equal(t, probes, f.remote.count(remote.ActionGetStats))
	assert.Equal(t, loads, f.remote.count(remote.ActionGetDevices))
}

func TestController_RunStopsWithContext(t *testing.T) {
	f := setupFixture(t, nil, withoutRemote())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.ctrl.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestController_StatsAndReport(t *testing.T) {
	f := setupFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	stats, err := f.ctrl.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, stats.ActiveSessions)

	r, err := f.ctrl.DailyReport(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 7, r.Stats.TotalSessions)

	_, err = f.ctrl.DailyReport(ctx, "03/01/2026")
	assert.ErrorIs(t, err, report.ErrInvalidDate)

	f.remote.fail(remote.ActionGetDailyReport, fmt.Errorf("%w: refused", core.ErrTransport))
	r, err = f.ctrl.DailyReport(ctx, "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Stats.TotalSessions)
	assert.NotNil(t, r.Sessions)
	assert.Equal(t, ModeDisconnected, f.ctrl.Mode())

	stats, err = f.ctrl.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ActiveSessions)
}

func TestController_ExportReport(t *testing.T) {
	f := setupFixture(t, nil, withoutRemote())
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	_, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "3", PlayerName: "Sami", Type: core.SessionTypeUnlimited})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)

	md, err := f.ctrl.ExportReport(ctx, "2026-03-01", report.FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "| PS4 #3 | Sami | unlimited | 0:30 | 3000 | active |")

	html, err := f.ctrl.ExportReport(ctx, "2026-03-01", report.FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")
}

func TestController_DevicesView(t *testing.T) {
	f := setupFixture(t, nil, withoutRemote())
	ctx := context.Background()
	require.NoError(t, f.ctrl.Init(ctx))

	_, err := f.ctrl.StartSession(ctx, StartInput{DeviceID: "1", PlayerName: "Ali", Type: core.SessionTypeLimited, TimeLimit: intPtr(30)})
	require.NoError(t, err)
	_, err = f.ctrl.StartSession(ctx, StartInput{DeviceID: "2", PlayerName: "Omar", Type: core.SessionTypeUnlimited})
	require.NoError(t, err)
	f.clock.Advance(45 * time.Minute)

	views := f.ctrl.Devices(ctx)
	require.Len(t, views, core.DefaultDeviceCount)

	limited := views[0]
	require.NotNil(t, limited.Session)
	assert.Equal(t, 45, limited.ElapsedMinutes)
	assert.Equal(t, "0:45", limited.Elapsed)
	require.NotNil(t, limited.RemainingMinutes)
	assert.Equal(t, 0, *limited.RemainingMinutes)
	assert.True(t, limited.TimeUp)
	assert.Equal(t, int64(4500), limited.CurrentCost)

	unlimited := views[1]
	require.NotNil(t, unlimited.Session)
	assert.Nil(t, unlimited.RemainingMinutes)
	assert.False(t, unlimited.TimeUp)

	idle := views[2]
	assert.Nil(t, idle.Session)
	assert.Equal(t, "0:00", idle.Elapsed)
	assert.Zero(t, idle.CurrentCost)
}

func TestController_Theme(t *testing.T) {
	cache := &memCache{}
	f := setupFixture(t, cache, withoutRemote())
	ctx := context.Background()

	theme, err := f.ctrl.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	require.NoError(t, f.ctrl.SetTheme(ctx, ThemeDark))
	theme, err = f.ctrl.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	assert.ErrorIs(t, f.ctrl.SetTheme(ctx, "blue"), core.ErrInvalidTheme)

	cache.saveErr = errors.New("read-only")
	assert.ErrorIs(t, f.ctrl.SetTheme(ctx, ThemeLight), core.ErrPersistence)
}

func TestLocalAuthenticator(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	auth, err := NewLocalAuthenticator("desk", hash)
	require.NoError(t, err)

	operator, err := auth.Authenticate("desk", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "desk", operator.Username)

	_, err = auth.Authenticate("desk", "S3cret")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	_, err = NewLocalAuthenticator("desk", "plaintext")
	assert.Error(t, err)
	_, err = NewLocalAuthenticator("", hash)
	assert.Error(t, err)
	_, err = HashPassword("")
	assert.Error(t, err)
}
