// Package storage keeps an audit trail of command responses and delete
// affordance outcomes.
//
// Two backends are available: an append-only JSON Lines file and SQLite
// (modernc.org/sqlite, no cgo).
package storage
