//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logx "hyperisle/pkg/logx"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
  key TEXT PRIMARY KEY,
  val TEXT NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	watch keyWatcher
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetInt64(ctx context.Context, key string, def int64) (int64, error) {
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

func (s *sqliteStore) SetInt64(ctx context.Context, key string, v int64) error {
	return s.SetString(ctx, key, strconv.FormatInt(v, 10))
}

func (s *sqliteStore) GetString(ctx context.Context, key, def string) (string, error) {
	if s == nil || s.db == nil {
		return def, ErrClosed
	}
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT val FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

func (s *sqliteStore) SetString(ctx context.Context, key, v string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv(key, val) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET val=excluded.val`,
		key, v,
	)
	if err != nil {
		return err
	}
	s.watch.notify(KeyChange{Key: key})
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.watch.notify(KeyChange{Key: key, Deleted: true})
	}
	return nil
}

func (s *sqliteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\'`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Subscribe(buffer int) (<-chan KeyChange, func()) {
	return s.watch.subscribe(buffer)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
