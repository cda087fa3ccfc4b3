package model

import "time"

// AssetRecipient binds a notification chat to an asset. MinRisk gates
// delivery: the recipient only receives events at or above that level.
type AssetRecipient struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	AssetID   uint      `json:"asset_id" gorm:"not null;uniqueIndex:idx_asset_chat"`
	ChatID    int64     `json:"chat_id" gorm:"not null;uniqueIndex:idx_asset_chat"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64)"`
	MinRisk   string    `json:"min_risk" gorm:"type:varchar(10);not null;default:MEDIUM"`
	Enabled   bool      `json:"enabled" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`

	// Relationship
	Asset *Asset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
}

// TableName specifies the table name for AssetRecipient
func (AssetRecipient) TableName() string {
	return "asset_recipients"
}
