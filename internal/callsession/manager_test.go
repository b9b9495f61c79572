package callsession

import (
	"testing"
	"time"

	"hyperisle/internal/clock"
	logx "hyperisle/pkg/logx"
)

type stateProbe struct{ s State }

func (p *stateProbe) fn() State { return p.s }

func newTestManager(t *testing.T, start State) (*Manager, *stateProbe, *clock.Manual) {
	t.Helper()
	probe := &stateProbe{s: start}
	clk := clock.NewManual(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	return NewManager(probe.fn, clk, 3*time.Second, logx.Nop()), probe, clk
}

func TestSameCallSameKey(t *testing.T) {
	t.Parallel()
	m, probe, clk := newTestManager(t, StateRinging)

	k1 := m.GetOrCreateCallKey("+15550100", DirectionIncoming)
	if k1 == "" {
		t.Fatal("no key for ringing call")
	}

	// Duplicate events, answer transition, elapsed time: key is stable.
	clk.Advance(time.Second)
	probe.s = StateOffhook
	for i := 0; i < 5; i++ {
		if k := m.GetOrCreateCallKey("+15550100", DirectionIncoming); k != k1 {
			t.Fatalf("key changed mid-call: %q -> %q", k1, k)
		}
		clk.Advance(time.Second)
	}
}

func TestIdleClearsAndLocks(t *testing.T) {
	t.Parallel()
	m, probe, clk := newTestManager(t, StateRinging)

	k1 := m.GetOrCreateCallKey("+15550100", DirectionIncoming)

	probe.s = StateIdle
	if k := m.GetOrCreateCallKey("+15550100", DirectionIncoming); k != "" {
		t.Fatalf("idle returned key %q", k)
	}
	if m.ActiveSession() != nil {
		t.Fatal("session survived idle transition")
	}
	if !m.IsSessionLocked() {
		t.Fatal("no lock after teardown")
	}

	// A stale non-idle event inside the lock window must not spawn a
	// ghost session.
	probe.s = StateRinging
	clk.Advance(time.Second)
	if k := m.GetOrCreateCallKey("+15550100", DirectionIncoming); k != "" {
		t.Fatalf("ghost session key %q during lock window", k)
	}

	// Past the window a genuinely new call gets a fresh key.
	clk.Advance(3 * time.Second)
	k2 := m.GetOrCreateCallKey("+15550100", DirectionIncoming)
	if k2 == "" {
		t.Fatal("no key after lock elapsed")
	}
	if k2 == k1 {
		t.Fatalf("new call reused the old key %q", k1)
	}
}

func TestLockSessionOnIdle(t *testing.T) {
	t.Parallel()
	m, probe, _ := newTestManager(t, StateOffhook)

	m.GetOrCreateCallKey("+15550100", DirectionOutgoing)
	m.LockSessionOnIdle()

	if m.ActiveSession() != nil {
		t.Fatal("session survived out-of-band idle")
	}
	if !m.IsSessionLocked() {
		t.Fatal("no lock after out-of-band idle")
	}
	probe.s = StateRinging
	if k := m.GetOrCreateCallKey("+15550100", DirectionIncoming); k != "" {
		t.Fatalf("got key %q inside lock window", k)
	}
}

func TestEmptyHandleAndDirection(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, StateRinging)

	k := m.GetOrCreateCallKey("", "")
	if k == "" {
		t.Fatal("no key for anonymous call")
	}
	s := m.ActiveSession()
	if s.Handle != "unknown" || s.Direction != DirectionUnknown {
		t.Fatalf("defaults not applied: %+v", s)
	}
}

func TestActiveSessionReturnsCopy(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestManager(t, StateRinging)

	m.GetOrCreateCallKey("+15550100", DirectionIncoming)
	s := m.ActiveSession()
	s.Handle = "tampered"
	if got := m.ActiveSession().Handle; got != "+15550100" {
		t.Fatalf("internal session mutated: %q", got)
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want State
	}{
		{"IDLE", StateIdle},
		{" ringing ", StateRinging},
		{"offhook", StateOffhook},
		{"", StateUnknown},
		{"garbage", StateUnknown},
	}
	for _, tt := range tests {
		if got := ParseState(tt.in); got != tt.want {
			t.Fatalf("ParseState(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
