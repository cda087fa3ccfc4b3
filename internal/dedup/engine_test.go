package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"soc-alert-relay-go/internal/model"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return baseTime.Add(time.Duration(seconds) * time.Second)
}

type stubStore struct {
	mu   sync.Mutex
	recs map[model.Fingerprint]*Record
	err  error
}

func newStubStore() *stubStore {
	return &stubStore{recs: make(map[model.Fingerprint]*Record)}
}

func (s *stubStore) Mutate(_ context.Context, fp model.Fingerprint, fn func(*Record) (*Record, error)) (*Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.recs[fp].Clone())
	if err != nil {
		return nil, err
	}
	s.recs[fp] = next
	return next.Clone(), nil
}

func (s *stubStore) Get(_ context.Context, fp model.Fingerprint) (*Record, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[fp]
	return rec.Clone(), ok, nil
}

func TestTransitionScenario(t *testing.T) {
	// Window 600s, threshold 3, arrivals at T=0,100,200,300,700.
	window := 600 * time.Second
	threshold := 3

	steps := []struct {
		offset       int
		wantDecision model.Decision
		wantCount    int
	}{
		{0, model.DecisionDeliver, 1},
		{100, model.DecisionSuppress, 2},
		{200, model.DecisionBurst, 3},
		{300, model.DecisionSuppress, 4},
		{700, model.DecisionDeliver, 1},
	}

	var rec *Record
	for i, step := range steps {
		var decision model.Decision
		rec, decision = Transition(rec, at(step.offset), window, threshold)
		if decision != step.wantDecision {
			t.Fatalf("step %d (T=%d): decision = %s, want %s", i, step.offset, decision, step.wantDecision)
		}
		if rec.RepeatCount != step.wantCount {
			t.Fatalf("step %d (T=%d): repeat count = %d, want %d", i, step.offset, rec.RepeatCount, step.wantCount)
		}
	}

	// The last arrival re-anchored the window.
	if !rec.WindowStart.Equal(at(700)) {
		t.Errorf("window start = %v, want %v", rec.WindowStart, at(700))
	}
	if !rec.WindowEnd.Equal(at(1300)) {
		t.Errorf("window end = %v, want %v", rec.WindowEnd, at(1300))
	}
	if rec.BurstSent {
		t.Error("new window must reset burst_sent")
	}
}

func TestTransitionWindowEndIsInclusive(t *testing.T) {
	window := 600 * time.Second

	rec, _ := Transition(nil, at(0), window, 3)

	// Exactly at the window end: still inside, counted and suppressed.
	rec, decision := Transition(rec, at(600), window, 3)
	if decision != model.DecisionSuppress {
		t.Fatalf("arrival at window end: decision = %s, want %s", decision, model.DecisionSuppress)
	}
	if rec.RepeatCount != 2 {
		t.Fatalf("arrival at window end: repeat count = %d, want 2", rec.RepeatCount)
	}

	// One instant past the end: a fresh window.
	rec, decision = Transition(rec, at(600).Add(time.Nanosecond), window, 3)
	if decision != model.DecisionDeliver {
		t.Fatalf("arrival past window end: decision = %s, want %s", decision, model.DecisionDeliver)
	}
	if rec.RepeatCount != 1 {
		t.Fatalf("arrival past window end: repeat count = %d, want 1", rec.RepeatCount)
	}
}

func TestTransitionBurstFiresExactlyOnce(t *testing.T) {
	window := 600 * time.Second
	threshold := 2

	var rec *Record
	var bursts int
	lastCount := 0

	for i := 0; i < 8; i++ {
		var decision model.Decision
		rec, decision = Transition(rec, at(i*10), window, threshold)
		if decision == model.DecisionBurst {
			bursts++
			if rec.RepeatCount != threshold {
				t.Fatalf("burst fired at count %d, want %d", rec.RepeatCount, threshold)
			}
		}
		if rec.RepeatCount != lastCount+1 && rec.RepeatCount != 1 {
			t.Fatalf("repeat count skipped: %d after %d", rec.RepeatCount, lastCount)
		}
		lastCount = rec.RepeatCount
	}

	if bursts != 1 {
		t.Fatalf("bursts = %d, want exactly 1", bursts)
	}
	if rec.RepeatCount != 8 {
		t.Fatalf("suppressed occurrences must still count: repeat count = %d, want 8", rec.RepeatCount)
	}
}

func TestTransitionThresholdOneNeverBursts(t *testing.T) {
	window := 600 * time.Second

	var rec *Record
	for i := 0; i < 5; i++ {
		var decision model.Decision
		rec, decision = Transition(rec, at(i*10), window, 1)
		if decision == model.DecisionBurst {
			t.Fatal("threshold 1 must never burst: the first occurrence is the delivery")
		}
	}
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	window := 600 * time.Second

	rec, _ := Transition(nil, at(0), window, 3)
	before := *rec

	Transition(rec, at(10), window, 3)

	if *rec != before {
		t.Fatal("Transition mutated its input record")
	}
}

func TestEngineDecide(t *testing.T) {
	store := newStubStore()
	engine, err := NewEngine(store, 600*time.Second, 3)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	fp := model.Fingerprint("aaaa000000000000000000000000000000000000000000000000000000000000")
	ctx := context.Background()

	out := engine.Decide(ctx, fp, at(0))
	if out.Decision != model.DecisionDeliver || out.RepeatCount != 1 || out.Degraded {
		t.Fatalf("first occurrence: got %+v", out)
	}
	if !out.WindowEnd.Equal(at(600)) {
		t.Fatalf("window end = %v, want %v", out.WindowEnd, at(600))
	}

	out = engine.Decide(ctx, fp, at(100))
	if out.Decision != model.DecisionSuppress || out.RepeatCount != 2 {
		t.Fatalf("second occurrence: got %+v", out)
	}

	out = engine.Decide(ctx, fp, at(200))
	if out.Decision != model.DecisionBurst || out.RepeatCount != 3 {
		t.Fatalf("third occurrence: got %+v", out)
	}

	rec, ok, err := store.Get(ctx, fp)
	if err != nil || !ok {
		t.Fatalf("record should exist: ok=%v err=%v", ok, err)
	}
	if !rec.BurstSent {
		t.Fatal("burst_sent not persisted")
	}
	if rec.Fingerprint != fp {
		t.Fatalf("fingerprint not stamped on record: %q", rec.Fingerprint)
	}
}

func TestEngineIndependentFingerprints(t *testing.T) {
	store := newStubStore()
	engine, err := NewEngine(store, 600*time.Second, 3)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	ctx := context.Background()
	a := model.Fingerprint("aaaa000000000000000000000000000000000000000000000000000000000000")
	b := model.Fingerprint("bbbb000000000000000000000000000000000000000000000000000000000000")

	engine.Decide(ctx, a, at(0))
	out := engine.Decide(ctx, b, at(10))
	if out.Decision != model.DecisionDeliver {
		t.Fatalf("distinct fingerprint must open its own window, got %s", out.Decision)
	}
}

func TestEngineDegradedMode(t *testing.T) {
	store := newStubStore()
	store.err = errors.New("connection refused")

	engine, err := NewEngine(store, 600*time.Second, 3)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	out := engine.Decide(context.Background(), "cafe", at(0))
	if out.Decision != model.DecisionDeliver {
		t.Fatalf("degraded mode must deliver, got %s", out.Decision)
	}
	if !out.Degraded {
		t.Fatal("outcome must be marked degraded")
	}
	if out.RepeatCount != 1 {
		t.Fatalf("degraded outcome repeat count = %d, want 1", out.RepeatCount)
	}
}

func TestNewEngineRejectsUnsafeConfig(t *testing.T) {
	store := newStubStore()

	if _, err := NewEngine(store, 5*time.Second, 3); err == nil {
		t.Error("window below floor must be rejected")
	}
	if _, err := NewEngine(store, 600*time.Second, 0); err == nil {
		t.Error("threshold below 1 must be rejected")
	}
	if _, err := NewEngine(store, MinWindow, MinThreshold); err != nil {
		t.Errorf("boundary values must be accepted: %v", err)
	}
}
