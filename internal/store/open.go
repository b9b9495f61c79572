package store

import (
	"errors"
	"strings"

	logx "hyperisle/pkg/logx"
)

// Open initializes the configured store.
// An empty driver defaults to "memory" so the engine always has a
// working (if volatile) counter backend.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
