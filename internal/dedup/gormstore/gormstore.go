// Package gormstore keeps dedup records in the relational database so a
// single-instance deployment needs no infrastructure beyond the audit DB.
// Atomicity comes from SELECT ... FOR UPDATE row locks inside a transaction.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"soc-alert-relay-go/internal/dedup"
	"soc-alert-relay-go/internal/model"
)

// Store is a database-backed dedup.Store sharing the application's
// GORM handle. The dedup_states table is created by the shared
// migration step.
type Store struct {
	db *gorm.DB
}

// New wraps an initialized database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Mutate implements dedup.Store. The row is locked FOR UPDATE for the
// duration of fn. Two writers can still race the very first insert of a
// fingerprint; the loser hits the unique index and one retry finds the
// row in place and locks it normally.
func (s *Store) Mutate(ctx context.Context, fp model.Fingerprint, fn func(*dedup.Record) (*dedup.Record, error)) (*dedup.Record, error) {
	var committed *dedup.Record

	attempt := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row model.DedupState
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("fingerprint = ?", string(fp)).
				First(&row).Error

			var cur *dedup.Record
			switch {
			case err == nil:
				cur = fromRow(&row)
			case errors.Is(err, gorm.ErrRecordNotFound):
				cur = nil
			default:
				return fmt.Errorf("read dedup state: %w", err)
			}

			next, err := fn(cur)
			if err != nil {
				return err
			}

			if next == nil {
				if cur != nil {
					if err := tx.Delete(&model.DedupState{}, row.ID).Error; err != nil {
						return fmt.Errorf("delete dedup state: %w", err)
					}
				}
				committed = nil
				return nil
			}

			update := toRow(next)
			if cur == nil {
				if err := tx.Create(update).Error; err != nil {
					return fmt.Errorf("create dedup state: %w", err)
				}
			} else {
				update.ID = row.ID
				if err := tx.Save(update).Error; err != nil {
					return fmt.Errorf("update dedup state: %w", err)
				}
			}
			committed = next
			return nil
		})
	}

	err := attempt()
	if err != nil {
		err = attempt()
	}
	if err != nil {
		return nil, err
	}
	return committed.Clone(), nil
}

// Get implements dedup.Store.
func (s *Store) Get(ctx context.Context, fp model.Fingerprint) (*dedup.Record, bool, error) {
	var row model.DedupState
	err := s.db.WithContext(ctx).Where("fingerprint = ?", string(fp)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read dedup state: %w", err)
	}
	return fromRow(&row), true, nil
}

// Sweep implements dedup.Sweeper, removing rows whose window closed
// before the cutoff.
func (s *Store) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("window_end < ?", cutoff).Delete(&model.DedupState{})
	if res.Error != nil {
		return 0, fmt.Errorf("sweep dedup states: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func fromRow(row *model.DedupState) *dedup.Record {
	return &dedup.Record{
		Fingerprint: model.Fingerprint(row.Fingerprint),
		WindowStart: row.WindowStart,
		WindowEnd:   row.WindowEnd,
		RepeatCount: row.RepeatCount,
		BurstSent:   row.BurstSent,
		LastSeen:    row.LastSeen,
	}
}

func toRow(rec *dedup.Record) *model.DedupState {
	return &model.DedupState{
		Fingerprint: string(rec.Fingerprint),
		WindowStart: rec.WindowStart,
		WindowEnd:   rec.WindowEnd,
		RepeatCount: rec.RepeatCount,
		BurstSent:   rec.BurstSent,
		LastSeen:    rec.LastSeen,
	}
}
