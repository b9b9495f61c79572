package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topics published by the core. Subscribers may filter on these;
// an empty filter receives everything.
const (
	TopicIslandRendered   = "island.rendered"
	TopicIslandSuppressed = "island.suppressed"
	TopicIslandDismissed  = "island.dismissed"
	TopicDecision         = "diag.decision"
	TopicLog              = "diag.log"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Topic string
	Time  time.Time
	Data  any
}

type Bus interface {
	Publish(e Event)
	// Subscribe registers a buffered subscriber. With no topics, every
	// event is delivered; otherwise only matching topics are.
	Subscribe(buffer int, topics ...string) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}}
}

type subscriber struct {
	ch     chan Event
	topics map[string]struct{} // nil means all
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if s.topics != nil {
			if _, ok := s.topics[e.Topic]; !ok {
				continue
			}
		}
		// Non-blocking delivery. If subscriber is slow, we drop.
		// If a subscriber unsubscribes concurrently and the channel closes,
		// recover from a possible panic (send on closed channel).
		func() {
			defer func() { _ = recover() }()
			select {
			case s.ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int, topics ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(sub.ch)
		})
	}
	return sub.ch, unsub
}
