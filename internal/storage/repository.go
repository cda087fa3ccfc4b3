// Package storage persists the audit trail: every inbound alert, every
// parse result and every dispatch attempt, regardless of dedup outcome.
package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"soc-alert-relay-go/internal/model"
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SeenAlert reports whether a mailbox message was already fully processed.
// Unprocessed rows do not count: a crash between audit and dispatch leaves
// the row behind, and the message must be picked up again.
func (r *Repository) SeenAlert(messageUID string) (bool, error) {
	var alert model.Alert
	result := r.db.Where("message_uid = ? AND processed = ?", messageUID, true).First(&alert)
	if result.Error == nil {
		return true, nil
	}
	if result.Error == gorm.ErrRecordNotFound {
		return false, nil
	}
	return false, fmt.Errorf("database error checking processed alert: %w", result.Error)
}

// SaveAlert records an inbound message, reusing the row when the same
// message UID was audited before.
func (r *Repository) SaveAlert(alert *model.Alert) error {
	result := r.db.Where("message_uid = ?", alert.MessageUID).FirstOrCreate(alert)
	if result.Error != nil {
		return fmt.Errorf("failed to save alert: %w", result.Error)
	}
	return nil
}

// SaveEvent records one parse result.
func (r *Repository) SaveEvent(event *model.EventRecord) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return fmt.Errorf("failed to save event: %w", result.Error)
	}
	return nil
}

// MarkAlertProcessed stamps an alert as fully handled.
func (r *Repository) MarkAlertProcessed(alertID uint) error {
	now := time.Now()
	result := r.db.Model(&model.Alert{}).Where("id = ?", alertID).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now})
	if result.Error != nil {
		return fmt.Errorf("failed to mark alert as processed: %w", result.Error)
	}
	return nil
}

// LogDispatch records one notification attempt to one chat.
func (r *Repository) LogDispatch(dispatch *model.Dispatch) error {
	result := r.db.Create(dispatch)
	if result.Error != nil {
		return fmt.Errorf("failed to log dispatch: %w", result.Error)
	}
	return nil
}

// ListAlerts returns the most recent alerts, newest first.
func (r *Repository) ListAlerts(limit int) ([]model.Alert, error) {
	var alerts []model.Alert
	result := r.db.Order("received_at DESC").Limit(limit).Find(&alerts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", result.Error)
	}
	return alerts, nil
}

// GetAlert returns one alert by ID, or nil when it does not exist.
func (r *Repository) GetAlert(id uint) (*model.Alert, error) {
	var alert model.Alert
	result := r.db.First(&alert, id)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get alert: %w", result.Error)
	}
	return &alert, nil
}

// ListEvents returns recent parsed events, optionally filtered by device
// and fingerprint, newest first.
func (r *Repository) ListEvents(device, fingerprint string, limit int) ([]model.EventRecord, error) {
	query := r.db.Order("created_at DESC").Limit(limit)
	if device != "" {
		query = query.Where("device = ?", device)
	}
	if fingerprint != "" {
		query = query.Where("fingerprint = ?", fingerprint)
	}

	var events []model.EventRecord
	result := query.Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list events: %w", result.Error)
	}
	return events, nil
}

// ListDispatches returns the dispatch log for one event.
func (r *Repository) ListDispatches(eventID uint) ([]model.Dispatch, error) {
	var dispatches []model.Dispatch
	result := r.db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&dispatches)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list dispatches: %w", result.Error)
	}
	return dispatches, nil
}
