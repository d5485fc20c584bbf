package report

import (
	"errors"
	"fmt"
	"time"

	"gamehall/internal/core"
)

// DateLayout is the wire format of a report day
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned when a report day cannot be parsed
var ErrInvalidDate = errors.New("date must be YYYY-MM-DD")

// Report is the daily report shape shared with the remote backend
type Report struct {
	Date     string          `json:"date"`
	Sessions []*core.Session `json:"sessions"`
	Stats    Summary         `json:"stats"`
}

// Summary aggregates the sessions of one report
type Summary struct {
	TotalSessions int   `json:"total_sessions"`
	TotalTime     int   `json:"total_time"`
	TotalRevenue  int64 `json:"total_revenue"`
}

// Generator builds daily reports from the session store
type Generator struct {
	store *core.Store
}

// NewGenerator creates a report generator over the store
func NewGenerator(store *core.Store) *Generator {
	return &Generator{store: store}
}

// Daily reports every session that started on the calendar day of date.
// Active sessions contribute their live elapsed time and cost.
func (g *Generator) Daily(date time.Time) *Report {
	start, end := g.store.DayWindow(date)
	sessions := g.store.SessionsStartedBetween(start, end)
	now := g.store.Now()
	cost := g.store.CostModel()

	report := &Report{
		Date:     start.Format(DateLayout),
		Sessions: make([]*core.Session, 0, len(sessions)),
	}
	for _, session := range sessions {
		report.Sessions = append(report.Sessions, session)
		report.Stats.TotalSessions++
		report.Stats.TotalTime += session.ElapsedMinutes(now)
		report.Stats.TotalRevenue += cost.SessionCost(session, now)
	}
	return report
}

// DailyForDay parses a YYYY-MM-DD day in the store's location and reports it
func (g *Generator) DailyForDay(day string) (*Report, error) {
	date, err := ParseDay(day, g.store.Location())
	if err != nil {
		return nil, err
	}
	return g.Daily(date), nil
}

// ParseDay parses a YYYY-MM-DD day at midnight in loc
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date, err := time.ParseInLocation(DateLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, day)
	}
	return date, nil
}
