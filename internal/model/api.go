package model

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Database   string            `json:"database"`
	DedupStore string            `json:"dedup_store"`
	Metrics    map[string]string `json:"metrics,omitempty"`
}

// ClassifyAssetRequest reclassifies an asset.
type ClassifyAssetRequest struct {
	Class string `json:"class" binding:"required"`
}

// RecipientRequest creates a chat binding for an asset.
type RecipientRequest struct {
	ChatID  int64  `json:"chat_id" binding:"required"`
	UserID  string `json:"user_id"`
	MinRisk string `json:"min_risk"`
	Enabled *bool  `json:"enabled"`
}

// AssetResponse represents an asset in API responses.
type AssetResponse struct {
	ID        uint      `json:"id"`
	Hostname  string    `json:"hostname"`
	Class     string    `json:"class"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecipientResponse represents an asset recipient in API responses.
type RecipientResponse struct {
	ID      uint   `json:"id"`
	AssetID uint   `json:"asset_id"`
	ChatID  int64  `json:"chat_id"`
	UserID  string `json:"user_id,omitempty"`
	MinRisk string `json:"min_risk"`
	Enabled bool   `json:"enabled"`
}

// DedupStateResponse exposes a fingerprint's live window state.
type DedupStateResponse struct {
	Fingerprint string    `json:"fingerprint"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	RepeatCount int       `json:"repeat_count"`
	BurstSent   bool      `json:"burst_sent"`
	LastSeen    time.Time `json:"last_seen"`
}
