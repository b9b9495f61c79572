// Package cooldown tracks short post-dismiss suppression windows and
// per-instance metadata used to route later user actions back to the
// originating notification.
//
// Cooldown is distinct from the priority engine's throttle: cooldown
// is a seconds-scale debounce after a single manual dismissal,
// throttle is a minutes-to-hours penalty escalated from repeated ones.
package cooldown

import (
	"sync"

	"hyperisle/internal/clock"
	"hyperisle/internal/event"
)

// DefaultSeconds is the dismissal debounce applied when config gives no value.
const DefaultSeconds = 30

// InstanceMeta maps a rendered island instance back to its origin.
type InstanceMeta struct {
	Source   string
	Category event.Category
}

// Manager is safe for concurrent use; notification events and user
// actions arrive on independent goroutines.
type Manager struct {
	clock clock.Clock

	mu sync.Mutex
	// dismissedAt: "source:category" -> mono ms of last dismissal.
	dismissedAt map[string]int64
	// meta: instance key -> origin.
	meta map[string]InstanceMeta
	// lastActive is the most recently registered instance key, used as
	// a best-effort fallback when an action arrives without context.
	lastActive string
}

func NewManager(clk clock.Clock) *Manager {
	return &Manager{
		clock:       clk,
		dismissedAt: map[string]int64{},
		meta:        map[string]InstanceMeta{},
	}
}

func cooldownKey(source string, cat event.Category) string {
	return source + ":" + string(cat)
}

// RecordDismissal starts (or restarts) the cooldown window.
func (m *Manager) RecordDismissal(source string, cat event.Category) {
	now := m.clock.MonoMs()
	m.mu.Lock()
	m.dismissedAt[cooldownKey(source, cat)] = now
	m.mu.Unlock()
}

// IsInCooldown reports whether the last dismissal is younger than
// cooldownSeconds. Expired entries are evicted lazily here; no
// background sweep exists or is needed.
func (m *Manager) IsInCooldown(source string, cat event.Category, cooldownSeconds int) bool {
	if cooldownSeconds <= 0 {
		return false
	}
	now := m.clock.MonoMs()
	key := cooldownKey(source, cat)

	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.dismissedAt[key]
	if !ok {
		return false
	}
	if now-at >= int64(cooldownSeconds)*1000 {
		delete(m.dismissedAt, key)
		return false
	}
	return true
}

func (m *Manager) ClearCooldown(source string, cat event.Category) {
	m.mu.Lock()
	delete(m.dismissedAt, cooldownKey(source, cat))
	m.mu.Unlock()
}

// ClearAllForSource drops every cooldown and instance record for the
// source (used when the user deselects a source).
func (m *Manager) ClearAllForSource(source string) {
	prefix := source + ":"
	m.mu.Lock()
	for k := range m.dismissedAt {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.dismissedAt, k)
		}
	}
	for k, meta := range m.meta {
		if meta.Source == source {
			delete(m.meta, k)
			if m.lastActive == k {
				m.lastActive = ""
			}
		}
	}
	m.mu.Unlock()
}

// SetInstanceMeta registers a rendered instance and marks it as the
// last active one.
func (m *Manager) SetInstanceMeta(instanceKey, source string, cat event.Category) {
	if instanceKey == "" {
		return
	}
	m.mu.Lock()
	m.meta[instanceKey] = InstanceMeta{Source: source, Category: cat}
	m.lastActive = instanceKey
	m.mu.Unlock()
}

func (m *Manager) GetInstanceMeta(instanceKey string) (InstanceMeta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.meta[instanceKey]
	return meta, ok
}

func (m *Manager) ClearInstanceMeta(instanceKey string) {
	m.mu.Lock()
	delete(m.meta, instanceKey)
	if m.lastActive == instanceKey {
		m.lastActive = ""
	}
	m.mu.Unlock()
}

// LastActiveInstance returns the most recently registered instance key
// and its meta. Best-effort: ok is false when nothing is active.
func (m *Manager) LastActiveInstance() (string, InstanceMeta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastActive == "" {
		return "", InstanceMeta{}, false
	}
	meta, ok := m.meta[m.lastActive]
	return m.lastActive, meta, ok
}
