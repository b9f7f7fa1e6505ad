package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled and dedup state lives
// only in memory for the process lifetime.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// SentRecord notes one delivered (or attempted) flight notification.
// Keep it compact and schema-stable.
type SentRecord struct {
	At      time.Time
	ChatID  int64
	Flight  string
	Event   string // "departure" | "arrival"
	Tier    string // "standard" | "urgent"
	Minutes int    // countdown shown to the user
	OK      bool
	Error   string
}
