package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("store closed")

// Config configures persistence.
//
// Driver values:
//   - "memory": process-local map (default; counters reset on restart)
//   - "file": dependency-free file backend (snapshot + jsonl journal)
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// KeyChange is emitted to subscribers on every successful write.
type KeyChange struct {
	Key     string
	Deleted bool
}

// Store is the scalar key/value persistence API the engine needs.
//
// Keys follow the "source:category" / "source:category:day" convention
// owned by the callers; the store treats them as opaque strings.
// Reads take a default and MUST return it (with the error) on failure
// so callers can degrade fail-soft.
type Store interface {
	GetInt64(ctx context.Context, key string, def int64) (int64, error)
	SetInt64(ctx context.Context, key string, v int64) error
	GetString(ctx context.Context, key, def string) (string, error)
	SetString(ctx context.Context, key, v string) error
	Delete(ctx context.Context, key string) error
	// Keys returns all keys with the given prefix (maintenance scans).
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Subscribe registers a buffered key-change feed. Slow subscribers
	// drop changes.
	Subscribe(buffer int) (<-chan KeyChange, func())
	Close() error
}

// keyWatcher implements Subscribe for all drivers.
type keyWatcher struct {
	mu   sync.Mutex
	subs map[uint64]chan KeyChange
	seq  uint64
}

func (w *keyWatcher) subscribe(buffer int) (<-chan KeyChange, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan KeyChange, buffer)

	w.mu.Lock()
	if w.subs == nil {
		w.subs = map[uint64]chan KeyChange{}
	}
	w.seq++
	id := w.seq
	w.subs[id] = ch
	w.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

func (w *keyWatcher) notify(c KeyChange) {
	w.mu.Lock()
	chs := make([]chan KeyChange, 0, len(w.subs))
	for _, ch := range w.subs {
		chs = append(chs, ch)
	}
	w.mu.Unlock()

	for _, ch := range chs {
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- c:
			default:
			}
		}()
	}
}
