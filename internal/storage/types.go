package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry kinds.
const (
	KindRespond    = "respond"
	KindAffordance = "affordance"
)

// Entry is one audit record. Keep it compact and schema-stable.
type Entry struct {
	At   time.Time `json:"at"`
	Kind string    `json:"kind"`

	ChatID     int64 `json:"chat_id"`
	RequestID  int   `json:"request_id"`  // invoking message id
	ResponseID int   `json:"response_id"` // response message id (0 when none)

	// Outcome is the respond outcome ("sent", "edited", ...) or the final
	// affordance state ("deleted", "expired", "failed").
	Outcome string `json:"outcome"`
	// Detail carries the affordance kind ("reaction", "button").
	Detail  string `json:"detail,omitempty"`
	ActorID int64  `json:"actor_id,omitempty"`
	TookMS  int64  `json:"took_ms"`
	Error   string `json:"error,omitempty"`
}

// Count is an aggregated number of entries per kind and outcome.
type Count struct {
	Kind    string
	Outcome string
	N       int64
}
