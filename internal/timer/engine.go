package timer

import (
	"log/slog"
	"sync"
	"time"

	"gamehall/internal/core"
	"gamehall/internal/metrics"
)

// DefaultPollInterval is how often live sessions are re-evaluated
const DefaultPollInterval = time.Second

// SessionSource provides a consistent copy of devices and sessions
type SessionSource interface {
	Snapshot() *core.Snapshot
}

// Engine polls limited sessions and edge-triggers one expiry event per
// expiry episode. The set of flagged session IDs lives here rather than on
// the session so it never has to be persisted or synced.
type Engine struct {
	source   SessionSource
	clock    core.Clock
	notifier Notifier
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// pass is held for the whole evaluation pass and by Exclusive callers
	pass sync.Mutex

	mu      sync.Mutex
	expired map[string]struct{}

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewEngine creates a new timer engine
func NewEngine(source SessionSource, clock core.Clock, notifier Notifier, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = core.RealClock{}
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Event) {})
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		source:   source,
		clock:    clock,
		notifier: notifier,
		interval: interval,
		metrics:  m,
		logger:   logger.With("component", "timer"),
		expired:  make(map[string]struct{}),
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop. It blocks until Stop is called.
func (e *Engine) Start() {
	e.logger.Info("Timer engine started", "interval", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Evaluate()
		case <-e.stopChan:
			e.logger.Info("Timer engine stopped")
			return
		}
	}
}

// Stop stops the polling loop
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
}

// Evaluate runs one pass over all active limited sessions and returns the
// events it emitted. If a pass is already in progress, or a mutation holds
// the engine through Exclusive, it returns immediately with ran=false.
func (e *Engine) Evaluate() (events []Event, ran bool) {
	if !e.pass.TryLock() {
		e.metrics.EvaluationSkipped()
		e.logger.Debug("Evaluation pass already in progress, skipping")
		return nil, false
	}
	defer e.pass.Unlock()

	started := time.Now()
	snapshot := e.source.Snapshot()
	now := e.clock.Now()

	names := make(map[string]string, len(snapshot.Devices))
	for _, device := range snapshot.Devices {
		names[device.ID] = device.Name
	}

	limited := make(map[string]struct{})
	for _, session := range snapshot.Sessions {
		if !session.IsActive || !session.IsLimited() {
			continue
		}
		limited[session.ID] = struct{}{}

		elapsed := session.ElapsedMinutes(now)
		if !e.checkTimeUp(session.ID, elapsed, *session.TimeLimit) {
			continue
		}

		events = append(events, Event{
			SessionID:      session.ID,
			DeviceID:       session.DeviceID,
			DeviceName:     names[session.DeviceID],
			TimeLimit:      *session.TimeLimit,
			ElapsedMinutes: elapsed,
			At:             now,
		})
	}

	e.prune(limited)

	for _, event := range events {
		e.logger.Info("Session time is up",
			"session_id", event.SessionID,
			"device", event.DeviceName,
			"time_limit", event.TimeLimit,
			"elapsed_minutes", event.ElapsedMinutes)
		e.metrics.ExpiryEmitted()
		e.notifier.Notify(event)
	}

	e.metrics.ObserveEvaluation(time.Since(started))
	return events, true
}

// Exclusive runs fn while no evaluation pass is in progress. Session
// mutations go through here so a pass never observes half of an action.
func (e *Engine) Exclusive(fn func()) {
	e.pass.Lock()
	defer e.pass.Unlock()
	fn()
}

// Clear drops the expiry flag of a session, so a later expiry can fire again
func (e *Engine) Clear(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.expired, sessionID)
}

// Reset drops every expiry flag
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expired = make(map[string]struct{})
}

// Flagged reports whether a session is currently flagged as time-up
func (e *Engine) Flagged(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.expired[sessionID]
	return ok
}

// checkTimeUp applies the per-session flag transition and reports whether
// the session just became flagged
func (e *Engine) checkTimeUp(sessionID string, elapsed, limit int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, flagged := e.expired[sessionID]
	switch {
	case elapsed >= limit && !flagged:
		e.expired[sessionID] = struct{}{}
		return true
	case elapsed < limit && flagged:
		// extended past expiry
		delete(e.expired, sessionID)
		e.logger.Debug("Expiry flag reset", "session_id", sessionID, "time_limit", limit)
	}
	return false
}

// prune drops flags of sessions that are no longer active and limited
func (e *Engine) prune(limited map[string]struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range e.expired {
		if _, ok := limited[id]; !ok {
			delete(e.expired, id)
		}
	}
}
