// Package dedup implements the anti-spam decision engine: a tumbling-window
// counter per fingerprint deciding whether an occurrence is delivered,
// suppressed or escalated as a burst. State lives behind the Store
// interface; the transition itself is pure.
package dedup

import (
	"context"
	"time"

	"soc-alert-relay-go/internal/model"
)

const (
	// MinWindow guards against a degenerate near-zero window turning every
	// repeat into a fresh delivery.
	MinWindow = 60 * time.Second
	// MinThreshold keeps the burst escalation meaningful.
	MinThreshold = 1
)

// Record is one fingerprint's window state. WindowEnd is fixed when the
// window is created and never extended by later occurrences; a new window
// is anchored only after the old one expires. LastSeen is bookkeeping for
// introspection and never influences decisions.
type Record struct {
	Fingerprint model.Fingerprint `json:"fingerprint"`
	WindowStart time.Time         `json:"window_start"`
	WindowEnd   time.Time         `json:"window_end"`
	RepeatCount int               `json:"repeat_count"`
	BurstSent   bool              `json:"burst_sent"`
	LastSeen    time.Time         `json:"last_seen"`
}

// Clone returns an independent copy, nil-safe.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Store holds one record per fingerprint. Mutate is the atomic
// read-modify-write the engine relies on: implementations must serialize
// mutations per fingerprint so concurrent arrivals never both observe the
// absence of a record, and must commit the returned record completely or
// not at all.
type Store interface {
	// Mutate runs fn for the fingerprint's record under per-key exclusion.
	// fn receives nil when no record exists; the record it returns replaces
	// the stored one. The committed record is returned to the caller.
	Mutate(ctx context.Context, fp model.Fingerprint, fn func(*Record) (*Record, error)) (*Record, error)

	// Get reads the current record without mutating it. The bool reports
	// whether a record exists.
	Get(ctx context.Context, fp model.Fingerprint) (*Record, bool, error)
}
