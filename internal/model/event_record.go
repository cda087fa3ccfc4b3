package model

import "time"

// EventRecord is the audit row for one parsed event, valid or not.
// Fingerprint is empty for invalid events, which never reach the engine.
type EventRecord struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	AlertID        uint       `json:"alert_id" gorm:"not null;index"`
	Device         string     `json:"device" gorm:"type:varchar(255);index"`
	EventType      string     `json:"event_type" gorm:"type:varchar(255)"`
	DetectionName  string     `json:"detection_name" gorm:"type:varchar(512)"`
	ObjectPath     string     `json:"object_path" gorm:"type:text"`
	Result         string     `json:"result" gorm:"type:varchar(255)"`
	ProcessName    string     `json:"process_name" gorm:"type:varchar(512)"`
	SHA256         string     `json:"sha256" gorm:"type:varchar(64)"`
	UserName       string     `json:"user_name" gorm:"type:varchar(255)"`
	VendorSeverity string     `json:"vendor_severity" gorm:"type:varchar(50)"`
	DetectedAt     *time.Time `json:"detected_at,omitempty"`
	Fingerprint    string     `json:"fingerprint" gorm:"type:varchar(64);index"`
	Valid          bool       `json:"valid"`
	Reason         string     `json:"reason" gorm:"type:varchar(50)"`
	CreatedAt      time.Time  `json:"created_at"`

	// Relationship
	Alert *Alert `json:"alert,omitempty" gorm:"foreignKey:AlertID"`
}

// TableName specifies the table name for EventRecord
func (EventRecord) TableName() string {
	return "events"
}
