// Package memstore provides the in-process dedup store. Fingerprints are
// sharded over independently locked maps, so unrelated fingerprints do not
// contend while mutations of the same fingerprint fully serialize.
package memstore

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"soc-alert-relay-go/internal/dedup"
	"soc-alert-relay-go/internal/model"
)

const shardCount = 16

type shard struct {
	mu   sync.Mutex
	recs map[model.Fingerprint]*dedup.Record
}

// Store is an in-memory dedup.Store, safe for concurrent use. State does
// not survive a restart; after one, every fingerprint simply opens a fresh
// window.
type Store struct {
	shards [shardCount]*shard
}

// New returns an empty store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{recs: make(map[model.Fingerprint]*dedup.Record)}
	}
	return s
}

func (s *Store) shardFor(fp model.Fingerprint) *shard {
	h := fnv.New32a()
	h.Write([]byte(fp))
	return s.shards[h.Sum32()%shardCount]
}

// Mutate implements dedup.Store. fn runs under the shard lock; records are
// copied in and out so callers never alias store memory.
func (s *Store) Mutate(ctx context.Context, fp model.Fingerprint, fn func(*dedup.Record) (*dedup.Record, error)) (*dedup.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sh := s.shardFor(fp)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	next, err := fn(sh.recs[fp].Clone())
	if err != nil {
		return nil, err
	}
	if next == nil {
		delete(sh.recs, fp)
		return nil, nil
	}
	sh.recs[fp] = next.Clone()
	return next, nil
}

// Get implements dedup.Store.
func (s *Store) Get(ctx context.Context, fp model.Fingerprint) (*dedup.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	sh := s.shardFor(fp)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.recs[fp]
	return rec.Clone(), ok, nil
}

// Sweep implements dedup.Sweeper: records whose window ended before cutoff
// are dropped.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for fp, rec := range sh.recs {
			if rec.WindowEnd.Before(cutoff) {
				delete(sh.recs, fp)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len reports the number of records across all shards.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.recs)
		sh.mu.Unlock()
	}
	return n
}
