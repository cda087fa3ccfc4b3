package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"soc-alert-relay-go/internal/model"
)

// Outcome is the engine's verdict for one occurrence.
type Outcome struct {
	Decision    model.Decision `json:"decision"`
	RepeatCount int            `json:"repeat_count"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	// Degraded marks a decision taken without store state: the store
	// failed, the occurrence was delivered anyway.
	Degraded bool `json:"degraded"`
}

// Transition applies one arrival at time at to a fingerprint's current
// record (nil when none exists) and returns the successor record plus the
// decision. Pure: no I/O, no clock, no logging.
//
// An arrival after the record's window end (or with no record) anchors a
// new window and delivers. Inside the window the counter always
// increments; the single burst fires exactly when the counter first
// reaches the threshold, everything else is suppressed. The window end is
// inclusive: an arrival exactly at WindowEnd still belongs to the window.
func Transition(rec *Record, at time.Time, window time.Duration, threshold int) (*Record, model.Decision) {
	if rec == nil || at.After(rec.WindowEnd) {
		return &Record{
			WindowStart: at,
			WindowEnd:   at.Add(window),
			RepeatCount: 1,
			BurstSent:   false,
			LastSeen:    at,
		}, model.DecisionDeliver
	}

	next := rec.Clone()
	next.RepeatCount++
	next.LastSeen = at

	if next.RepeatCount == threshold && !next.BurstSent {
		next.BurstSent = true
		return next, model.DecisionBurst
	}
	return next, model.DecisionSuppress
}

// Engine evaluates occurrences against a Store. Callers must feed a
// non-decreasing arrival time per fingerprint; the processor satisfies
// this by evaluating sequentially with its own clock.
type Engine struct {
	store     Store
	window    time.Duration
	threshold int
}

// NewEngine rejects unsafe parameters outright; the config layer enforces
// the same bounds at load time.
func NewEngine(store Store, window time.Duration, threshold int) (*Engine, error) {
	if window < MinWindow {
		return nil, fmt.Errorf("dedup window %s is below the %s minimum", window, MinWindow)
	}
	if threshold < MinThreshold {
		return nil, fmt.Errorf("repeat threshold %d must be at least %d", threshold, MinThreshold)
	}
	return &Engine{store: store, window: window, threshold: threshold}, nil
}

// Decide runs one occurrence through the state machine. A store failure
// never drops the event: the occurrence is treated as a fresh fingerprint
// and delivered, with the outcome marked degraded for the caller's
// metrics.
func (e *Engine) Decide(ctx context.Context, fp model.Fingerprint, at time.Time) Outcome {
	var decision model.Decision

	rec, err := e.store.Mutate(ctx, fp, func(cur *Record) (*Record, error) {
		next, d := Transition(cur, at, e.window, e.threshold)
		next.Fingerprint = fp
		decision = d
		return next, nil
	})
	if err != nil {
		logrus.Warnf("Dedup store unavailable for %s, delivering without suppression: %v", fp.Short(), err)
		return Outcome{
			Decision:    model.DecisionDeliver,
			RepeatCount: 1,
			WindowStart: at,
			WindowEnd:   at.Add(e.window),
			Degraded:    true,
		}
	}

	return Outcome{
		Decision:    decision,
		RepeatCount: rec.RepeatCount,
		WindowStart: rec.WindowStart,
		WindowEnd:   rec.WindowEnd,
	}
}

// Window returns the configured window length.
func (e *Engine) Window() time.Duration {
	return e.window
}

// Threshold returns the configured repeat threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}
