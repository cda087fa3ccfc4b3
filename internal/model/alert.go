package model

import "time"

// Alert is the audit row for one inbound mailbox message. Every fetched
// message gets a row regardless of parse validity or decision outcome.
type Alert struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageUID  string     `json:"message_uid" gorm:"type:varchar(255);not null;uniqueIndex"`
	Subject     string     `json:"subject" gorm:"type:varchar(512)"`
	Sender      string     `json:"sender" gorm:"type:varchar(255)"`
	ReceivedAt  time.Time  `json:"received_at"`
	ContentType string     `json:"content_type" gorm:"type:varchar(10)"`
	RawText     string     `json:"raw_text" gorm:"type:mediumtext"`
	ParseValid  bool       `json:"parse_valid"`
	ParseReason string     `json:"parse_reason" gorm:"type:varchar(50)"`
	Processed   bool       `json:"processed" gorm:"default:false"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}
