// Package redistore backs the dedup store with Redis so window state
// survives restarts and can be shared between replicas. Per-fingerprint
// atomicity uses optimistic WATCH transactions with bounded retries.
package redistore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"soc-alert-relay-go/internal/dedup"
	"soc-alert-relay-go/internal/model"
)

const (
	keyPrefix  = "dedup:fp:"
	maxRetries = 5
)

// Store is a Redis-backed dedup.Store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection. Records carry a TTL
// of twice the dedup window: a record is dead once its window ends, the
// margin keeps introspection working briefly after expiry. Retired
// records therefore expire natively and no sweeper is needed.
func New(addr, password string, db int, window time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Store{client: client, ttl: 2 * window}, nil
}

func key(fp model.Fingerprint) string {
	return keyPrefix + string(fp)
}

// Mutate implements dedup.Store. The read-modify-write runs inside a
// WATCH transaction: when another writer touches the fingerprint between
// read and commit, the transaction fails and is retried.
func (s *Store) Mutate(ctx context.Context, fp model.Fingerprint, fn func(*dedup.Record) (*dedup.Record, error)) (*dedup.Record, error) {
	k := key(fp)
	var committed *dedup.Record

	txn := func(tx *redis.Tx) error {
		cur, err := readRecord(ctx, tx, k)
		if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			return err
		}

		if next == nil {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, k)
				return nil
			})
			committed = nil
			return err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal dedup record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		committed = next
		return err
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, k)
		if err == nil {
			return committed.Clone(), nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("dedup record %s: transaction contention persisted across %d attempts", fp.Short(), maxRetries)
}

func readRecord(ctx context.Context, tx *redis.Tx, k string) (*dedup.Record, error) {
	data, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec dedup.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal dedup record: %w", err)
	}
	return &rec, nil
}

// Get implements dedup.Store.
func (s *Store) Get(ctx context.Context, fp model.Fingerprint) (*dedup.Record, bool, error) {
	data, err := s.client.Get(ctx, key(fp)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rec dedup.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal dedup record: %w", err)
	}
	return &rec, true, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
