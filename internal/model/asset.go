package model

import "time"

// Asset is a device seen in at least one alert. Devices are auto-registered
// as UNCLASSIFIED on first sighting and reclassified through the admin API.
type Asset struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Hostname  string    `json:"hostname" gorm:"type:varchar(255);not null;uniqueIndex"`
	Class     string    `json:"class" gorm:"type:varchar(20);not null;default:UNCLASSIFIED"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Asset
func (Asset) TableName() string {
	return "assets"
}
