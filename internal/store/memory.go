package store

import (
	"context"
	"strconv"
	"strings"
	"sync"
)

// memStore keeps everything in a mutex-guarded map. It is the default
// backend: counters and throttle records simply reset on restart,
// which is an acceptable fail-soft posture for suppression state.
type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	closed bool

	watch keyWatcher
}

func NewMemory() Store {
	return &memStore{data: map[string]string{}}
}

func (s *memStore) GetInt64(ctx context.Context, key string, def int64) (int64, error) {
	raw, err := s.GetString(ctx, key, "")
	if err != nil || raw == "" {
		return def, err
	}
	v, perr := strconv.ParseInt(raw, 10, 64)
	if perr != nil {
		return def, perr
	}
	return v, nil
}

func (s *memStore) SetInt64(ctx context.Context, key string, v int64) error {
	return s.SetString(ctx, key, strconv.FormatInt(v, 10))
}

func (s *memStore) GetString(_ context.Context, key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return def, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s *memStore) SetString(_ context.Context, key, v string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.data[key] = v
	s.mu.Unlock()

	s.watch.notify(KeyChange{Key: key})
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	_, ok := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()

	if ok {
		s.watch.notify(KeyChange{Key: key, Deleted: true})
	}
	return nil
}

func (s *memStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]string, 0, 16)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memStore) Subscribe(buffer int) (<-chan KeyChange, func()) {
	return s.watch.subscribe(buffer)
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
