// Package clock supplies logical time to the lockup engine.
//
// Every time-dependent computation (vesting, reward accrual, cooldowns,
// fee change intervals) reads a Clock instead of the wall clock so that
// repeated calls at the same instant are deterministic and tests can set
// the time directly.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns the current logical time in unix seconds.
type Clock interface {
	Now() int64
}

// Common durations in seconds.
const (
	Day   int64 = 24 * 3600
	Month int64 = 30 * Day
	Year  int64 = 365 * Day
)

// Days returns n days in seconds.
func Days(n int64) int64 { return n * Day }

// Months returns n 30-day months in seconds.
func Months(n int64) int64 { return n * Month }

// System reads the wall clock.
type System struct{}

// Now returns time.Now in unix seconds.
func (System) Now() int64 { return time.Now().Unix() }

// Manual is a settable clock. The zero value reads 0.
type Manual struct {
	now atomic.Int64
}

// NewManual returns a Manual clock set to start.
func NewManual(start int64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

// Now returns the current setting.
func (m *Manual) Now() int64 { return m.now.Load() }

// Set moves the clock to t. Moving backwards is allowed for tests that
// probe a boundary from both sides.
func (m *Manual) Set(t int64) { m.now.Store(t) }

// Advance moves the clock forward by d seconds and returns the new time.
func (m *Manual) Advance(d int64) int64 { return m.now.Add(d) }

// Func adapts a function to Clock.
type Func func() int64

// Now calls f.
func (f Func) Now() int64 { return f() }
