package cooldown

import (
	"testing"
	"time"

	"hyperisle/internal/clock"
	"hyperisle/internal/event"
)

func newTestManager(t *testing.T) (*Manager, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	return NewManager(clk), clk
}

func TestCooldownWindow(t *testing.T) {
	t.Parallel()
	m, clk := newTestManager(t)

	if m.IsInCooldown("com.chat", event.CategoryStandard, 30) {
		t.Fatal("cooldown before any dismissal")
	}

	m.RecordDismissal("com.chat", event.CategoryStandard)
	if !m.IsInCooldown("com.chat", event.CategoryStandard, 30) {
		t.Fatal("no cooldown right after dismissal")
	}

	clk.Advance(29 * time.Second)
	if !m.IsInCooldown("com.chat", event.CategoryStandard, 30) {
		t.Fatal("cooldown lapsed early")
	}

	clk.Advance(time.Second)
	if m.IsInCooldown("com.chat", event.CategoryStandard, 30) {
		t.Fatal("cooldown outlived its window")
	}
}

func TestCooldownIsPerSourceAndCategory(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.RecordDismissal("com.chat", event.CategoryStandard)
	if m.IsInCooldown("com.mail", event.CategoryStandard, 30) {
		t.Fatal("cooldown leaked across sources")
	}
	if m.IsInCooldown("com.chat", event.CategoryMedia, 30) {
		t.Fatal("cooldown leaked across categories")
	}
}

func TestCooldownRestartsOnNewDismissal(t *testing.T) {
	t.Parallel()
	m, clk := newTestManager(t)

	m.RecordDismissal("com.chat", event.CategoryStandard)
	clk.Advance(25 * time.Second)
	m.RecordDismissal("com.chat", event.CategoryStandard)
	clk.Advance(25 * time.Second)
	if !m.IsInCooldown("com.chat", event.CategoryStandard, 30) {
		t.Fatal("window did not restart on second dismissal")
	}
}

func TestCooldownZeroSecondsDisables(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.RecordDismissal("com.chat", event.CategoryStandard)
	if m.IsInCooldown("com.chat", event.CategoryStandard, 0) {
		t.Fatal("cooldown active with a zero-length window")
	}
}

func TestClearCooldown(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.RecordDismissal("com.chat", event.CategoryStandard)
	m.ClearCooldown("com.chat", event.CategoryStandard)
	if m.IsInCooldown("com.chat", event.CategoryStandard, 30) {
		t.Fatal("cooldown survived clear")
	}
}

func TestInstanceMetaLifecycle(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.SetInstanceMeta("com.chat:c1:m1", "com.chat", event.CategoryStandard)

	meta, ok := m.GetInstanceMeta("com.chat:c1:m1")
	if !ok || meta.Source != "com.chat" || meta.Category != event.CategoryStandard {
		t.Fatalf("meta = %+v ok=%v", meta, ok)
	}

	key, meta, ok := m.LastActiveInstance()
	if !ok || key != "com.chat:c1:m1" || meta.Source != "com.chat" {
		t.Fatalf("last active = %q %+v ok=%v", key, meta, ok)
	}

	m.ClearInstanceMeta("com.chat:c1:m1")
	if _, ok := m.GetInstanceMeta("com.chat:c1:m1"); ok {
		t.Fatal("meta survived clear")
	}
	if _, _, ok := m.LastActiveInstance(); ok {
		t.Fatal("last active points at a cleared instance")
	}
}

func TestLastActiveTracksNewest(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.SetInstanceMeta("a:1:1", "a", event.CategoryStandard)
	m.SetInstanceMeta("b:1:1", "b", event.CategoryMedia)

	key, meta, ok := m.LastActiveInstance()
	if !ok || key != "b:1:1" || meta.Category != event.CategoryMedia {
		t.Fatalf("last active = %q %+v ok=%v", key, meta, ok)
	}

	// Clearing an older instance must not disturb the newest.
	m.ClearInstanceMeta("a:1:1")
	if key, _, ok := m.LastActiveInstance(); !ok || key != "b:1:1" {
		t.Fatalf("last active = %q ok=%v after unrelated clear", key, ok)
	}
}

func TestSetInstanceMetaIgnoresEmptyKey(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.SetInstanceMeta("", "com.chat", event.CategoryStandard)
	if _, _, ok := m.LastActiveInstance(); ok {
		t.Fatal("empty instance key registered")
	}
}

func TestClearAllForSource(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)

	m.RecordDismissal("com.chat", event.CategoryStandard)
	m.RecordDismissal("com.chat", event.CategoryMedia)
	m.RecordDismissal("com.mail", event.CategoryStandard)
	m.SetInstanceMeta("com.chat:c1:m1", "com.chat", event.CategoryStandard)
	m.SetInstanceMeta("com.mail:c1:m1", "com.mail", event.CategoryStandard)

	m.ClearAllForSource("com.chat")

	if m.IsInCooldown("com.chat", event.CategoryStandard, 30) || m.IsInCooldown("com.chat", event.CategoryMedia, 30) {
		t.Fatal("cooldowns survived source clear")
	}
	if !m.IsInCooldown("com.mail", event.CategoryStandard, 30) {
		t.Fatal("unrelated source cleared")
	}
	if _, ok := m.GetInstanceMeta("com.chat:c1:m1"); ok {
		t.Fatal("instance meta survived source clear")
	}
	if _, ok := m.GetInstanceMeta("com.mail:c1:m1"); !ok {
		t.Fatal("unrelated instance meta cleared")
	}
}
