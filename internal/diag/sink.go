// Package diag is the optional decision-observability sink.
//
// Sinks observe engine decisions without influencing them. Content
// never reaches the sink: notifications are identified by a hash of
// their key.
package diag

import (
	"hash/fnv"
	"strconv"

	"golang.org/x/time/rate"

	"hyperisle/internal/eventbus"
)

type Sink interface {
	Record(source, keyHash, decision string, reasons []string)
}

// Nop returns a sink that drops everything.
func Nop() Sink { return nopSink{} }

type nopSink struct{}

func (nopSink) Record(string, string, string, []string) {}

// HashKey hashes a notification key for diagnostics. FNV-64a: cheap,
// stable across restarts, not reversible to readable content.
func HashKey(key string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return strconv.FormatUint(h.Sum64(), 16)
}

// DecisionEvent is the bus payload for one recorded decision.
type DecisionEvent struct {
	Source   string   `json:"source"`
	KeyHash  string   `json:"key_hash"`
	Decision string   `json:"decision"`
	Reasons  []string `json:"reasons,omitempty"`
}

// busSink publishes decisions onto the event bus, rate-limited so an
// adversarial notification flood cannot amplify through diagnostics.
type busSink struct {
	bus eventbus.Bus
	lim *rate.Limiter
}

func NewBusSink(bus eventbus.Bus, perSec int) Sink {
	if perSec < 1 {
		perSec = 20
	}
	return &busSink{bus: bus, lim: rate.NewLimiter(rate.Limit(perSec), perSec)}
}

func (s *busSink) Record(source, keyHash, decision string, reasons []string) {
	if s.bus == nil || !s.lim.Allow() {
		return
	}
	s.bus.Publish(eventbus.Event{
		Topic: eventbus.TopicDecision,
		Data: DecisionEvent{
			Source:   source,
			KeyHash:  keyHash,
			Decision: decision,
			Reasons:  append([]string(nil), reasons...),
		},
	})
}
