package eventbus

import (
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Topic: TopicIslandRendered, Data: "m"})
	e := recv(t, ch)
	if e.Topic != TopicIslandRendered || e.Data != "m" {
		t.Fatalf("event = %+v", e)
	}
	if e.Time.IsZero() {
		t.Fatal("publish did not stamp Time")
	}
}

func TestTopicFilter(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4, TopicIslandSuppressed)
	defer unsub()

	b.Publish(Event{Topic: TopicIslandRendered})
	b.Publish(Event{Topic: TopicIslandSuppressed})

	e := recv(t, ch)
	if e.Topic != TopicIslandSuppressed {
		t.Fatalf("filter delivered %q", e.Topic)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	default:
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Topic: TopicDecision, Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	// The buffer holds the first event; the rest were dropped.
	if e := recv(t, ch); e.Data != 0 {
		t.Fatalf("first buffered event = %v", e.Data)
	}
}

func TestPublishAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	_ = ch
	unsub()
	unsub() // idempotent

	// Must not panic on the closed channel.
	b.Publish(Event{Topic: TopicIslandRendered})
}
