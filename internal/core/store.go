package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gamehall/internal/idgen"
)

// DefaultDeviceCount is the size of the device pool created on first run
const DefaultDeviceCount = 6

// Snapshot is a consistent copy of the store contents
type Snapshot struct {
	Devices  []*Device
	Sessions []*Session
}

// Store is the in-memory collection of devices and sessions. It owns the
// mutation rules and derives all aggregates from sessions on demand.
type Store struct {
	mu       sync.RWMutex
	devices  []*Device
	sessions []*Session
	cost     CostModel
	clock    Clock
	location *time.Location
}

// NewStore creates an empty session store
func NewStore(cost CostModel, clock Clock, location *time.Location) *Store {
	if clock == nil {
		clock = RealClock{}
	}
	if location == nil {
		location = time.Local
	}
	return &Store{
		cost:     cost,
		clock:    clock,
		location: location,
	}
}

// DefaultDevices builds the initial pool of n available devices
func DefaultDevices(n int) []*Device {
	devices := make([]*Device, 0, n)
	for i := 1; i <= n; i++ {
		devices = append(devices, &Device{
			ID:     idgen.Device(i),
			Name:   fmt.Sprintf("PS4 #%d", i),
			Status: DeviceStatusAvailable,
		})
	}
	return devices
}

// CostModel returns the store's cost model
func (s *Store) CostModel() CostModel {
	return s.cost
}

// Location returns the time zone used for calendar-day windows
func (s *Store) Location() *time.Location {
	return s.location
}

// Now samples the store clock. Callers rendering a refresh cycle should
// sample once and pass the value to every derived computation.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Load replaces the store contents wholesale
func (s *Store) Load(devices []*Device, sessions []*Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = cloneDevices(devices)
	s.sessions = cloneSessions(sessions)
}

// Snapshot returns a copy of all devices and sessions taken under one lock
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &Snapshot{
		Devices:  cloneDevices(s.devices),
		Sessions: cloneSessions(s.sessions),
	}
}

// Restore puts back a snapshot previously taken with Snapshot
func (s *Store) Restore(snapshot *Snapshot) {
	s.Load(snapshot.Devices, snapshot.Sessions)
}

// Devices returns copies of all devices in pool order
func (s *Store) Devices() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDevices(s.devices)
}

// Sessions returns copies of all known sessions
func (s *Store) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSessions(s.sessions)
}

// ActiveSessions returns copies of all active sessions
func (s *Store) ActiveSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Session
	for _, session := range s.sessions {
		if session.IsActive {
			active = append(active, session.Clone())
		}
	}
	return active
}

// GetDevice retrieves a device by ID
func (s *Store) GetDevice(id string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	device := s.findDevice(id)
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	return device.Clone(), nil
}

// GetSession retrieves a session by ID
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := s.findSession(id)
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// ActiveSessionForDevice returns the active session on a device, if any
func (s *Store) ActiveSessionForDevice(deviceID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.IsActive && session.DeviceID == deviceID {
			return session.Clone(), true
		}
	}
	return nil, false
}

// StartSession opens a session on an available device
func (s *Store) StartSession(deviceID, playerName string, sessionType SessionType, timeLimit *int) (*Session, error) {
	if err := ValidateStart(playerName, sessionType, timeLimit); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	device := s.findDevice(deviceID)
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	if !device.IsAvailable() {
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, device.Name)
	}

	session := &Session{
		ID:         idgen.NewSession(),
		DeviceID:   deviceID,
		PlayerName: strings.TrimSpace(playerName),
		Type:       sessionType,
		StartTime:  s.clock.Now(),
		IsActive:   true,
	}
	if sessionType == SessionTypeLimited {
		limit := *timeLimit
		session.TimeLimit = &limit
	}

	s.sessions = append(s.sessions, session)
	device.Status = DeviceStatusOccupied

	return session.Clone(), nil
}

// EndSession closes an active session and moves its totals to the device
func (s *Store) EndSession(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(sessionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	elapsed := session.ElapsedMinutes(now)
	cost := s.cost.Cost(elapsed)

	session.EndTime = &now
	session.IsActive = false
	session.TotalCost = cost

	if device := s.findDevice(session.DeviceID); device != nil {
		device.Status = DeviceStatusAvailable
		device.TotalPlayTime += elapsed
		device.TotalRevenue += cost
	}

	return session.Clone(), nil
}

// ExtendSession raises the time limit of an active limited session
func (s *Store) ExtendSession(sessionID string, additionalMinutes int) (*Session, error) {
	if additionalMinutes <= 0 {
		return nil, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsLimited() {
		return nil, ErrNotLimited
	}

	limit := *session.TimeLimit + additionalMinutes
	session.TimeLimit = &limit

	return session.Clone(), nil
}

// SwitchToUnlimited drops the time limit of an active session
func (s *Store) SwitchToUnlimited(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.activeSession(sessionID)
	if err != nil {
		return nil, err
	}

	session.Type = SessionTypeUnlimited
	session.TimeLimit = nil

	return session.Clone(), nil
}

// ElapsedMinutes returns the elapsed minutes of a session at the given reference time
func (s *Store) ElapsedMinutes(session *Session, now time.Time) int {
	return session.ElapsedMinutes(now)
}

// CurrentCost returns the live cost of an active session or the final cost of a closed one
func (s *Store) CurrentCost(session *Session, now time.Time) int64 {
	return s.cost.SessionCost(session, now)
}

// DayWindow returns [start, end) of the calendar day containing t in the store's location
func (s *Store) DayWindow(t time.Time) (time.Time, time.Time) {
	return DayWindow(t, s.location)
}

// SessionsStartedBetween returns copies of sessions whose start falls in [start, end)
func (s *Store) SessionsStartedBetween(start, end time.Time) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Session
	for _, session := range s.sessions {
		if inWindow(session.StartTime, start, end) {
			result = append(result, session.Clone())
		}
	}
	return result
}

// Stats derives the active count and the totals for the calendar day of now
func (s *Store) Stats(now time.Time) *Stats {
	dayStart, dayEnd := s.DayWindow(now)

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	for _, session := range s.sessions {
		if session.IsActive {
			stats.ActiveSessions++
		}
		if !inWindow(session.StartTime, dayStart, dayEnd) {
			continue
		}
		stats.TotalTimeToday += session.ElapsedMinutes(now)
		stats.TotalRevenueToday += s.cost.SessionCost(session, now)
	}
	return stats
}

// DayWindow returns [start, end) of the calendar day containing t in loc
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	inLoc := t.In(loc)
	year, month, day := inLoc.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

// activeSession finds a session that may still be mutated. Caller holds the lock.
func (s *Store) activeSession(id string) (*Session, error) {
	session := s.findSession(id)
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.IsActive {
		return nil, ErrSessionClosed
	}
	return session, nil
}

func (s *Store) findDevice(id string) *Device {
	for _, device := range s.devices {
		if device.ID == id {
			return device
		}
	}
	return nil
}

func (s *Store) findSession(id string) *Session {
	for _, session := range s.sessions {
		if session.ID == id {
			return session
		}
	}
	return nil
}

func cloneDevices(devices []*Device) []*Device {
	result := make([]*Device, 0, len(devices))
	for _, device := range devices {
		result = append(result, device.Clone())
	}
	return result
}

func cloneSessions(sessions []*Session) []*Session {
	result := make([]*Session, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, session.Clone())
	}
	return result
}
