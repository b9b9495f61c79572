// Package callsession tracks the lifecycle of one phone call as a
// session with a stable identity key, independent of how many
// duplicate telephony events arrive.
package callsession

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"hyperisle/internal/clock"
	logx "hyperisle/pkg/logx"
)

// State is the call state reported by the external telephony query.
type State string

const (
	StateIdle    State = "IDLE"
	StateRinging State = "RINGING"
	StateOffhook State = "OFFHOOK"
	StateUnknown State = "UNKNOWN"
)

func ParseState(s string) State {
	switch State(strings.ToUpper(strings.TrimSpace(s))) {
	case StateIdle:
		return StateIdle
	case StateRinging:
		return StateRinging
	case StateOffhook:
		return StateOffhook
	default:
		return StateUnknown
	}
}

// Direction of the call.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
	DirectionUnknown  Direction = "UNKNOWN"
)

// Session is one ongoing call.
type Session struct {
	Handle    string
	Direction Direction
	StartMono int64

	// Key is stable for the session's lifetime:
	// handle_direction_startMono.
	Key string
}

// StateFn is the external call-state query, reread on every call.
type StateFn func() State

const defaultSessionLock = 3 * time.Second

// Manager owns the session state machine.
//
// Invariants:
//   - same call => same key; new call => new key
//   - a session is created lazily on the first non-idle observation
//   - transition to IDLE clears the session and locks creation for a
//     short window, absorbing duplicate teardown events
type Manager struct {
	log     logx.Logger
	clock   clock.Clock
	stateFn StateFn

	mu          sync.Mutex
	session     *Session
	lastState   State
	lockedUntil int64 // mono ms
	lockFor     time.Duration
}

func NewManager(stateFn StateFn, clk clock.Clock, lockFor time.Duration, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if lockFor <= 0 {
		lockFor = defaultSessionLock
	}
	return &Manager{
		log:       log.With(logx.String("comp", "call")),
		clock:     clk,
		stateFn:   stateFn,
		lastState: StateIdle,
		lockFor:   lockFor,
	}
}

// GetOrCreateCallKey returns the active session key, creating a
// session if the call state is non-idle and none exists. During the
// post-teardown lock window it returns "" so stale duplicate events
// cannot spawn a ghost session.
func (m *Manager) GetOrCreateCallKey(handle string, dir Direction) string {
	state := m.stateFn()
	now := m.clock.MonoMs()

	m.mu.Lock()
	defer m.mu.Unlock()

	if state == StateIdle {
		if m.session != nil || m.lastState != StateIdle {
			m.clearAndLockLocked(now)
		}
		m.lastState = StateIdle
		return ""
	}
	m.lastState = state

	if m.session != nil {
		// Stability guarantee: same call, same key, however noisy the
		// event stream is.
		return m.session.Key
	}

	if now < m.lockedUntil {
		// Teardown just happened; this non-idle reading is presumed
		// stale. No session until the lock elapses.
		return ""
	}

	if handle == "" {
		handle = "unknown"
	}
	if dir == "" {
		dir = DirectionUnknown
	}
	s := &Session{
		Handle:    handle,
		Direction: dir,
		StartMono: now,
		Key:       handle + "_" + string(dir) + "_" + strconv.FormatInt(now, 10),
	}
	m.session = s
	m.log.Debug("call session created", logx.String("key", s.Key), logx.String("state", string(state)))
	return s.Key
}

// LockSessionOnIdle force-clears the session and opens the lock
// window, for callers that observe the IDLE transition out of band.
func (m *Manager) LockSessionOnIdle() {
	now := m.clock.MonoMs()
	m.mu.Lock()
	m.clearAndLockLocked(now)
	m.lastState = StateIdle
	m.mu.Unlock()
}

func (m *Manager) clearAndLockLocked(nowMono int64) {
	if m.session != nil {
		m.log.Debug("call session cleared", logx.String("key", m.session.Key))
	}
	m.session = nil
	m.lockedUntil = nowMono + m.lockFor.Milliseconds()
}

func (m *Manager) IsSessionLocked() bool {
	now := m.clock.MonoMs()
	m.mu.Lock()
	defer m.mu.Unlock()
	return now < m.lockedUntil
}

// ActiveSession returns a copy of the current session, or nil.
func (m *Manager) ActiveSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	return &cp
}
