package model

import "time"

// Dispatch logs one notification attempt to one chat.
type Dispatch struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID     uint      `json:"event_id" gorm:"not null;index"`
	ChatID      int64     `json:"chat_id" gorm:"not null"`
	Decision    string    `json:"decision" gorm:"type:varchar(10);not null"`
	Risk        string    `json:"risk" gorm:"type:varchar(10)"`
	RepeatCount int       `json:"repeat_count"`
	Narrative   bool      `json:"narrative"`
	SentText    string    `json:"sent_text" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:varchar(20);not null"` // sent, failed
	ErrorMsg    string    `json:"error_msg" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`

	// Relationship
	Event *EventRecord `json:"event,omitempty" gorm:"foreignKey:EventID"`
}

// TableName specifies the table name for Dispatch
func (Dispatch) TableName() string {
	return "dispatches"
}
