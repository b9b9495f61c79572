package priority

import (
	"context"
	"testing"
	"time"

	"hyperisle/internal/clock"
	"hyperisle/internal/event"
	"hyperisle/internal/store"
	logx "hyperisle/pkg/logx"
)

// throttled probes the persisted throttle gate in isolation by
// resetting the burst window first.
func throttled(ctx context.Context, e *Engine, source string) bool {
	e.ClearBurstTracking("")
	return e.Evaluate(ctx, source, event.CategoryStandard).Verdict == VerdictDenyThrottle
}

func TestDismissScoreCrossesThreshold(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, DefaultConfig()) // MEDIUM, threshold 10
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	}
	if throttled(ctx, e, "com.chat") {
		t.Fatal("throttled at score 9, threshold is 10")
	}

	e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	if !throttled(ctx, e, "com.chat") {
		t.Fatal("not throttled at score 10")
	}
}

func TestDismissScoreDecaysAcrossDays(t *testing.T) {
	t.Parallel()
	e, clk := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	}
	clk.Advance(24 * time.Hour)

	// Yesterday's 5 contribute 3.0; today's n contribute n*1.0.
	for i := 0; i < 6; i++ {
		e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	}
	if throttled(ctx, e, "com.chat") {
		t.Fatal("throttled at 6+3=9, threshold is 10")
	}
	e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	if !throttled(ctx, e, "com.chat") {
		t.Fatal("not throttled at 7+3=10")
	}
}

func TestFastDismissDoublesDown(t *testing.T) {
	t.Parallel()
	e, clk := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	// Shown then dismissed inside the fast window: each cycle is worth
	// 1.0 (dismiss) + 2.0 (fast), so 4 cycles reach 12 >= 10.
	for i := 0; i < 3; i++ {
		e.RecordIslandShown("com.chat")
		clk.Advance(time.Second)
		e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	}
	if throttled(ctx, e, "com.chat") {
		t.Fatal("throttled at 3 fast cycles (score 9)")
	}
	e.RecordIslandShown("com.chat")
	clk.Advance(time.Second)
	e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	if !throttled(ctx, e, "com.chat") {
		t.Fatal("not throttled at 4 fast cycles (score 12)")
	}
}

func TestSlowDismissIsNotFast(t *testing.T) {
	t.Parallel()
	e, clk := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	e.RecordIslandShown("com.chat")
	clk.Advance(3 * time.Second) // past the 2s fast window
	e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)

	if got := e.counter(ctx, counterFastDismiss, "com.chat", event.CategoryStandard, e.today()); got != 0 {
		t.Fatalf("fastdismiss counter = %d, want 0", got)
	}
	if got := e.counter(ctx, counterDismiss, "com.chat", event.CategoryStandard, e.today()); got != 1 {
		t.Fatalf("dismiss counter = %d, want 1", got)
	}
}

func TestDismissScoreAdjustments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		dismiss int
		fast    int
		tap     int
		mute    int
		want    float64
	}{
		{name: "plain dismisses", dismiss: 4, want: 4},
		{name: "tap opens lower", dismiss: 4, tap: 2, want: 3},
		{name: "tap floor", dismiss: 5, tap: 10, want: 2},
		{name: "mute raises", dismiss: 2, mute: 1, want: 5},
		{name: "mute ceiling", dismiss: 2, mute: 8, want: 12},
		{name: "fast dismiss", dismiss: 2, fast: 2, want: 6},
		{name: "floored at zero", dismiss: 1, tap: 10, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, DefaultConfig())
			day := e.today()
			for i := 0; i < tt.dismiss; i++ {
				e.bumpCounter(ctx, counterDismiss, "com.chat", event.CategoryStandard, day)
			}
			for i := 0; i < tt.fast; i++ {
				e.bumpCounter(ctx, counterFastDismiss, "com.chat", event.CategoryStandard, day)
			}
			for i := 0; i < tt.tap; i++ {
				e.bumpCounter(ctx, counterTapOpen, "com.chat", event.CategoryStandard, day)
			}
			for i := 0; i < tt.mute; i++ {
				e.bumpCounter(ctx, counterMuteBlock, "com.chat", event.CategoryStandard, day)
			}
			if got := e.dismissScore(ctx, "com.chat", event.CategoryStandard, day); got != tt.want {
				t.Fatalf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuietHoursHalveThrottleDuration(t *testing.T) {
	t.Parallel()
	clk := clock.NewManual(time.Date(2026, 3, 10, 22, 30, 0, 0, time.Local))
	e := New(DefaultConfig(), store.NewMemory(), clk, logx.Nop())
	ctx := context.Background()

	// Quiet threshold for MEDIUM is 10*0.7 = 7; quiet duration is
	// 60m/2 = 30m.
	for i := 0; i < 7; i++ {
		e.RecordDismiss(ctx, "com.chat", event.CategoryStandard)
	}
	if !throttled(ctx, e, "com.chat") {
		t.Fatal("not throttled at quiet threshold 7")
	}

	clk.Advance(29 * time.Minute)
	if !throttled(ctx, e, "com.chat") {
		t.Fatal("throttle lapsed before the halved duration")
	}
	clk.Advance(2 * time.Minute)
	if throttled(ctx, e, "com.chat") {
		t.Fatal("throttle outlived the halved duration")
	}
}

func TestGCExpired(t *testing.T) {
	t.Parallel()
	e, clk := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	e.ManualThrottle(ctx, "com.a", event.CategoryStandard, 10*time.Minute)
	e.ManualThrottle(ctx, "com.b", event.CategoryStandard, time.Hour)
	e.bumpCounter(ctx, counterDismiss, "com.a", event.CategoryStandard, e.today())

	if removed := e.GCExpired(ctx); removed != 0 {
		t.Fatalf("gc removed %d records while all are live", removed)
	}

	clk.Advance(11 * time.Minute)
	if removed := e.GCExpired(ctx); removed != 1 {
		t.Fatalf("gc removed %d, want 1 expired throttle", removed)
	}

	// Counters older than the 3-day scoring horizon go too.
	clk.Advance(72 * time.Hour)
	removed := e.GCExpired(ctx)
	if removed != 2 { // com.b throttle + the stale counter
		t.Fatalf("gc removed %d, want 2", removed)
	}
	keys, err := e.store.Keys(ctx, keyCounterPrefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("stale counters survived gc: %v", keys)
	}
}
