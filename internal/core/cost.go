package core

import (
	"errors"
	"fmt"
	"time"
)

// DefaultHourlyRate is the price of one hour of play
const DefaultHourlyRate int64 = 6000

// ErrInvalidHourlyRate is returned for a non-positive hourly rate
var ErrInvalidHourlyRate = errors.New("hourly rate must be positive")

// CostModel maps elapsed play time to a price under a fixed hourly rate.
// It is the single place where money is computed.
type CostModel struct {
	hourlyRate int64
}

// NewCostModel creates a cost model for the given hourly rate
func NewCostModel(hourlyRate int64) (CostModel, error) {
	if hourlyRate <= 0 {
		return CostModel{}, ErrInvalidHourlyRate
	}
	return CostModel{hourlyRate: hourlyRate}, nil
}

// HourlyRate returns the configured hourly rate
func (c CostModel) HourlyRate() int64 {
	return c.hourlyRate
}

// Cost returns ceil(elapsedMinutes/60 * hourlyRate).
// Callers must clamp elapsed time to >= 0; a negative value panics.
func (c CostModel) Cost(elapsedMinutes int) int64 {
	if elapsedMinutes < 0 {
		panic(fmt.Sprintf("core: negative elapsed minutes %d", elapsedMinutes))
	}
	// ceil(m*rate/60) in integers
	return (int64(elapsedMinutes)*c.hourlyRate + 59) / 60
}

// SessionCost returns the live cost of an active session or the stored
// total of a closed one
func (c CostModel) SessionCost(s *Session, now time.Time) int64 {
	if !s.IsActive {
		return s.TotalCost
	}
	return c.Cost(s.ElapsedMinutes(now))
}
