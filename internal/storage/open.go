package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"editbot/pkg/logx"
)

// Store persists the editor's audit trail.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Counts aggregates entries at or after since.
	Counts(ctx context.Context, since time.Time) ([]Count, error)
	// Prune drops entries older than before and reports how many went.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

type opener func(cfg Config, log logx.Logger) (Store, error)

var drivers = map[string]opener{
	"file":    openFile,
	"sqlite":  openSQLite,
	"sqlite3": openSQLite,
}

// Open returns the store for cfg.Driver, or (nil, nil) when storage is off.
func Open(cfg Config, log logx.Logger) (Store, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if name == "" || name == "none" {
		return nil, nil
	}
	open, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	st, err := open(cfg, log.With(logx.String("driver", name)))
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", name, err)
	}
	return st, nil
}
