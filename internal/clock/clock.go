// Package clock provides the time source injected into every
// time-dependent component so tests can drive time manually.
//
// Wall time feeds day bucketing and quiet hours; monotonic time feeds
// burst windows, cooldowns, and session keys (immune to wall clock
// adjustments).
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	// WallMs is the wall-clock time in unix milliseconds.
	WallMs() int64
	// MonoMs is a monotonic reading in milliseconds. It has no defined
	// epoch; only differences are meaningful.
	MonoMs() int64
	// Now returns the current local wall time.
	Now() time.Time
}

// System is the real clock.
type System struct {
	start time.Time
}

func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) WallMs() int64  { return time.Now().UnixMilli() }
func (s *System) MonoMs() int64  { return time.Since(s.start).Milliseconds() }
func (s *System) Now() time.Time { return time.Now() }

// Manual is a test clock advanced explicitly.
type Manual struct {
	mu   sync.Mutex
	wall time.Time
	mono int64
}

func NewManual(wall time.Time) *Manual {
	return &Manual{wall: wall}
}

func (m *Manual) WallMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall.UnixMilli()
}

func (m *Manual) MonoMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mono
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall
}

// Advance moves both wall and monotonic time forward.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.wall = m.wall.Add(d)
	m.mono += d.Milliseconds()
	m.mu.Unlock()
}

// SetWall sets wall time without touching the monotonic reading,
// mimicking a wall clock adjustment.
func (m *Manual) SetWall(t time.Time) {
	m.mu.Lock()
	m.wall = t
	m.mu.Unlock()
}
