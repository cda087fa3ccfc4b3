package model

import "time"

// DedupState is the database row backing one fingerprint's dedup record
// when the database store backend is selected.
type DedupState struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Fingerprint string    `json:"fingerprint" gorm:"type:varchar(64);not null;uniqueIndex"`
	WindowStart time.Time `json:"window_start" gorm:"not null"`
	WindowEnd   time.Time `json:"window_end" gorm:"not null;index"`
	RepeatCount int       `json:"repeat_count" gorm:"not null;default:1"`
	BurstSent   bool      `json:"burst_sent" gorm:"not null;default:false"`
	LastSeen    time.Time `json:"last_seen"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for DedupState
func (DedupState) TableName() string {
	return "dedup_states"
}
