package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	logx "hyperisle/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.kv.snapshot.json (periodic snapshot)
//   - <prefix>.kv.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File
	data         map[string]string

	writes int

	watch keyWatcher
}

type journalRecord struct {
	Key string `json:"key"`
	Val string `json:"val,omitempty"`
	Del bool   `json:"del,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".kv.snapshot.json"
	journalPath := prefix + ".kv.journal.jsonl"

	// Load snapshot, then replay the journal over it.
	data := map[string]string{}
	_ = loadSnapshot(snapPath, data)
	_ = replayJournal(journalPath, data)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		data:         data,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	// Compact on close so restart starts from a clean snapshot.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("kv compact on close failed", logx.Err(err))
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) GetInt64(ctx context.Context, key string, def int64) (int64, error) {
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

func (s *fileStore) SetInt64(ctx context.Context, key string, v int64) error {
	return s.SetString(ctx, key, strconv.FormatInt(v, 10))
}

func (s *fileStore) GetString(_ context.Context, key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return def, ErrClosed
	}
	v, ok := s.data[key]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s *fileStore) SetString(_ context.Context, key, v string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	if s.journalFile == nil {
		s.mu.Unlock()
		return ErrClosed
	}
	s.data[key] = v
	err := s.appendLocked(journalRecord{Key: key, Val: v})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.watch.notify(KeyChange{Key: key})
	return nil
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	if s.journalFile == nil {
		s.mu.Unlock()
		return ErrClosed
	}
	_, ok := s.data[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.data, key)
	err := s.appendLocked(journalRecord{Key: key, Del: true})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.watch.notify(KeyChange{Key: key, Deleted: true})
	return nil
}

func (s *fileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
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

func (s *fileStore) Subscribe(buffer int) (<-chan KeyChange, func()) {
	return s.watch.subscribe(buffer)
}

func (s *fileStore) appendLocked(r journalRecord) error {
	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("kv compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, 2)
	return err
}

func loadSnapshot(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayJournal(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Key == "" {
			continue
		}
		if r.Del {
			delete(out, r.Key)
			continue
		}
		out[r.Key] = r.Val
	}
	return sc.Err()
}
