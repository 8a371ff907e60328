package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"reincarnation/pkg/logx"
)

var (
	ErrDisabled = errors.New("store disabled")
	// ErrNotFound is returned by Load when nothing has been saved yet
	// (first run). Callers start from defaults in that case.
	ErrNotFound = errors.New("settings record not found")
)

// Config configures persistence.
//
// Driver values:
//   - "file": dependency-free single-file backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", persistence is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the whole-record persistence API used by the settings manager.
// Save overwrites the entire record; Load returns the last saved bytes.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, record []byte) error
	Close() error
}

// Path reports the backing file path of a store, if it has one.
// The settings manager uses it to watch file-backed stores for edits.
type Path interface {
	Path() string
}

// Open initializes the configured store.
// It returns (nil, nil) if persistence is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
