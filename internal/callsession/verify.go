package callsession

import (
	"context"
	"time"

	logx "hyperisle/pkg/logx"
)

const (
	defaultVerifyInterval = 200 * time.Millisecond
	defaultVerifyTimeout  = 2 * time.Second
)

// VerifyResult reports the outcome of a bounded transition poll.
type VerifyResult struct {
	Reached bool
	Final   State
	Waited  time.Duration
	Polls   int
}

// Controller performs call actions against the platform. Each action
// has a fallback mechanism; implementations return an error from the
// primary without attempting the fallback themselves.
type Controller interface {
	Accept(ctx context.Context) error
	AcceptFallback(ctx context.Context) error
	End(ctx context.Context) error
	EndFallback(ctx context.Context) error
}

// ActionResult reports a call action attempt, tagged with the
// mechanism that succeeded (or "none").
type ActionResult struct {
	OK     bool
	Method string // "primary", "fallback" or "none"
	Err    string
}

// VerifyTransition polls the call state until it reaches want, up to
// the timeout. Terminates early on reaching a terminal match.
func (m *Manager) VerifyTransition(ctx context.Context, want State, interval, timeout time.Duration) VerifyResult {
	if interval <= 0 {
		interval = defaultVerifyInterval
	}
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}

	start := m.clock.MonoMs()
	deadline := start + timeout.Milliseconds()
	polls := 0
	final := StateUnknown

	for {
		polls++
		final = m.stateFn()
		if final == want {
			return VerifyResult{
				Reached: true,
				Final:   final,
				Waited:  time.Duration(m.clock.MonoMs()-start) * time.Millisecond,
				Polls:   polls,
			}
		}
		if m.clock.MonoMs() >= deadline {
			break
		}
		select {
		case <-ctx.Done():
			return VerifyResult{Final: final, Waited: time.Duration(m.clock.MonoMs()-start) * time.Millisecond, Polls: polls}
		case <-time.After(interval):
		}
	}
	return VerifyResult{
		Final:  final,
		Waited: time.Duration(m.clock.MonoMs()-start) * time.Millisecond,
		Polls:  polls,
	}
}

// AcceptCall runs the documented fallback chain: primary accept, then
// verified; on failure the fallback intent path; then report failure.
// It never returns an error; callers branch on the result.
func (m *Manager) AcceptCall(ctx context.Context, ctl Controller, interval, timeout time.Duration) ActionResult {
	if ctl == nil {
		return ActionResult{Method: "none", Err: "no controller"}
	}

	if err := ctl.Accept(ctx); err == nil {
		if v := m.VerifyTransition(ctx, StateOffhook, interval, timeout); v.Reached {
			return ActionResult{OK: true, Method: "primary"}
		}
		m.log.Debug("accept verify timed out; trying fallback")
	} else {
		m.log.Debug("primary accept failed; trying fallback", logx.Err(err))
	}

	if err := ctl.AcceptFallback(ctx); err != nil {
		return ActionResult{Method: "none", Err: err.Error()}
	}
	if v := m.VerifyTransition(ctx, StateOffhook, interval, timeout); v.Reached {
		return ActionResult{OK: true, Method: "fallback"}
	}
	return ActionResult{Method: "fallback", Err: "state never reached OFFHOOK"}
}

// EndCall mirrors AcceptCall for hangup, verifying IDLE.
func (m *Manager) EndCall(ctx context.Context, ctl Controller, interval, timeout time.Duration) ActionResult {
	if ctl == nil {
		return ActionResult{Method: "none", Err: "no controller"}
	}

	if err := ctl.End(ctx); err == nil {
		if v := m.VerifyTransition(ctx, StateIdle, interval, timeout); v.Reached {
			m.LockSessionOnIdle()
			return ActionResult{OK: true, Method: "primary"}
		}
		m.log.Debug("end verify timed out; trying fallback")
	} else {
		m.log.Debug("primary end failed; trying fallback", logx.Err(err))
	}

	if err := ctl.EndFallback(ctx); err != nil {
		return ActionResult{Method: "none", Err: err.Error()}
	}
	if v := m.VerifyTransition(ctx, StateIdle, interval, timeout); v.Reached {
		m.LockSessionOnIdle()
		return ActionResult{OK: true, Method: "fallback"}
	}
	return ActionResult{Method: "fallback", Err: "state never reached IDLE"}
}
