package diag

import (
	"testing"
	"time"

	"hyperisle/internal/eventbus"
)

func TestHashKeyStableAndOpaque(t *testing.T) {
	t.Parallel()
	a := HashKey("com.chat:alice:42")
	if a != HashKey("com.chat:alice:42") {
		t.Fatal("hash not stable")
	}
	if a == HashKey("com.chat:alice:43") {
		t.Fatal("distinct keys collided")
	}
	// Raw key material never appears in the hash.
	if a == "com.chat:alice:42" {
		t.Fatal("hash leaked the key")
	}
}

func TestBusSinkPublishesDecision(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4, eventbus.TopicDecision)
	defer unsub()

	s := NewBusSink(bus, 10)
	s.Record("com.chat", HashKey("k"), "DENY_BURST", []string{"BURST", "src:com.chat"})

	select {
	case e := <-ch:
		de, ok := e.Data.(DecisionEvent)
		if !ok {
			t.Fatalf("payload = %T", e.Data)
		}
		if de.Source != "com.chat" || de.Decision != "DENY_BURST" || len(de.Reasons) != 2 {
			t.Fatalf("decision = %+v", de)
		}
	case <-time.After(time.Second):
		t.Fatal("no decision published")
	}
}

func TestBusSinkRateLimits(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(256, eventbus.TopicDecision)
	defer unsub()

	s := NewBusSink(bus, 5)
	for i := 0; i < 100; i++ {
		s.Record("com.chat", "h", "ALLOW", nil)
	}

	// The limiter's burst is the per-second rate, so at most that many
	// make it through a tight loop.
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			if n == 0 || n > 5 {
				t.Fatalf("published %d decisions, want 1..5", n)
			}
			return
		}
	}
}

func TestNopSink(t *testing.T) {
	t.Parallel()
	Nop().Record("s", "h", "ALLOW", nil) // must not panic
}
