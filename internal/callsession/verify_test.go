package callsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"hyperisle/internal/clock"
	logx "hyperisle/pkg/logx"
)

// fakeController drives the state probe on whichever mechanisms are
// allowed to succeed.
type fakeController struct {
	probe *stateProbe

	primaryErr  error
	fallbackErr error

	// target is the state a successful action moves the probe to;
	// leaving it empty simulates an action that "succeeds" without
	// any observable transition.
	primaryTarget  State
	fallbackTarget State

	primaryCalls  int
	fallbackCalls int
}

func (c *fakeController) act(err error, target State, calls *int) error {
	*calls++
	if err != nil {
		return err
	}
	if target != "" {
		c.probe.s = target
	}
	return nil
}

func (c *fakeController) Accept(ctx context.Context) error {
	return c.act(c.primaryErr, c.primaryTarget, &c.primaryCalls)
}

func (c *fakeController) AcceptFallback(ctx context.Context) error {
	return c.act(c.fallbackErr, c.fallbackTarget, &c.fallbackCalls)
}

func (c *fakeController) End(ctx context.Context) error {
	return c.act(c.primaryErr, c.primaryTarget, &c.primaryCalls)
}

func (c *fakeController) EndFallback(ctx context.Context) error {
	return c.act(c.fallbackErr, c.fallbackTarget, &c.fallbackCalls)
}

func TestVerifyTransitionImmediate(t *testing.T) {
	t.Parallel()
	m, probe, _ := newTestManager(t, StateOffhook)
	probe.s = StateOffhook

	v := m.VerifyTransition(context.Background(), StateOffhook, time.Millisecond, 50*time.Millisecond)
	if !v.Reached || v.Polls != 1 || v.Final != StateOffhook {
		t.Fatalf("got %+v, want reached on first poll", v)
	}
}

func TestVerifyTransitionEventually(t *testing.T) {
	t.Parallel()
	probe := &stateProbe{s: StateRinging}
	clk := clock.NewManual(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	polls := 0
	fn := func() State {
		polls++
		clk.Advance(100 * time.Millisecond)
		if polls >= 3 {
			probe.s = StateOffhook
		}
		return probe.s
	}
	m := NewManager(fn, clk, 0, logx.Nop())

	v := m.VerifyTransition(context.Background(), StateOffhook, time.Millisecond, 2*time.Second)
	if !v.Reached || v.Polls != 3 {
		t.Fatalf("got %+v, want reached on third poll", v)
	}
}

func TestVerifyTransitionTimeout(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	fn := func() State {
		clk.Advance(600 * time.Millisecond)
		return StateRinging
	}
	m := NewManager(fn, clk, 0, logx.Nop())

	v := m.VerifyTransition(context.Background(), StateOffhook, time.Millisecond, 2*time.Second)
	if v.Reached {
		t.Fatalf("reached without transition: %+v", v)
	}
	if v.Final != StateRinging {
		t.Fatalf("final = %s, want RINGING", v.Final)
	}
	if v.Waited < 2*time.Second {
		t.Fatalf("gave up after %v, before the timeout", v.Waited)
	}
}

func TestVerifyTransitionCanceled(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, StateRinging)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := m.VerifyTransition(ctx, StateOffhook, time.Millisecond, 2*time.Second)
	if v.Reached {
		t.Fatalf("reached after cancellation: %+v", v)
	}
}

func TestAcceptCallPrimary(t *testing.T) {
	t.Parallel()
	m, probe, _ := newTestManager(t, StateRinging)
	ctl := &fakeController{probe: probe, primaryTarget: StateOffhook}

	r := m.AcceptCall(context.Background(), ctl, time.Millisecond, 50*time.Millisecond)
	if !r.OK || r.Method != "primary" {
		t.Fatalf("got %+v, want primary success", r)
	}
	if ctl.fallbackCalls != 0 {
		t.Fatal("fallback attempted after primary success")
	}
}

func TestAcceptCallFallsBack(t *testing.T) {
	t.Parallel()
	m, probe, _ := newTestManager(t, StateRinging)
	ctl := &fakeController{
		probe:          probe,
		primaryErr:     errors.New("telecom rejected"),
		fallbackTarget: StateOffhook,
	}

	r := m.AcceptCall(context.Background(), ctl, time.Millisecond, 50*time.Millisecond)
	if !r.OK || r.Method != "fallback" {
		t.Fatalf("got %+v, want fallback success", r)
	}
	if ctl.primaryCalls != 1 || ctl.fallbackCalls != 1 {
		t.Fatalf("calls primary=%d fallback=%d", ctl.primaryCalls, ctl.fallbackCalls)
	}
}

func TestAcceptCallVerifyFailureTriggersFallback(t *testing.T) {
	t.Parallel()
	probe := &stateProbe{s: StateRinging}
	clk := clock.NewManual(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	m := NewManager(func() State {
		clk.Advance(30 * time.Millisecond)
		return probe.s
	}, clk, 0, logx.Nop())

	// Primary "succeeds" but the state never moves; the verify loop
	// must give up and the fallback must carry the call.
	ctl := &fakeController{probe: probe, fallbackTarget: StateOffhook}

	r := m.AcceptCall(context.Background(), ctl, time.Millisecond, 50*time.Millisecond)
	if !r.OK || r.Method != "fallback" {
		t.Fatalf("got %+v, want fallback success after verify timeout", r)
	}
}

func TestAcceptCallBothFail(t *testing.T) {
	t.Parallel()
	m, probe, _ := newTestManager(t, StateRinging)
	ctl := &fakeController{
		probe:       probe,
		primaryErr:  errors.New("telecom rejected"),
		fallbackErr: errors.New("intent blocked"),
	}

	r := m.AcceptCall(context.Background(), ctl, time.Millisecond, 50*time.Millisecond)
	if r.OK || r.Method != "none" || r.Err == "" {
		t.Fatalf("got %+v, want reported failure", r)
	}
}

func TestEndCallLocksSession(t *testing.T) {
	t.Parallel()
	m, probe, _ := newTestManager(t, StateOffhook)
	m.GetOrCreateCallKey("+15550100", DirectionOutgoing)

	ctl := &fakeController{probe: probe, primaryTarget: StateIdle}
	r := m.EndCall(context.Background(), ctl, time.Millisecond, 50*time.Millisecond)
	if !r.OK || r.Method != "primary" {
		t.Fatalf("got %+v, want primary success", r)
	}
	if m.ActiveSession() != nil {
		t.Fatal("session survived verified hangup")
	}
	if !m.IsSessionLocked() {
		t.Fatal("no lock after verified hangup")
	}
}

func TestNilController(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, StateRinging)
	if r := m.AcceptCall(context.Background(), nil, 0, 0); r.OK || r.Method != "none" {
		t.Fatalf("got %+v", r)
	}
	if r := m.EndCall(context.Background(), nil, 0, 0); r.OK || r.Method != "none" {
		t.Fatalf("got %+v", r)
	}
}
