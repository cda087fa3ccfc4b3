// Package notify carries decided alerts to their recipients.
package notify

import (
	"context"

	"soc-alert-relay-go/internal/model"
)

// Dispatch is one decided, enriched alert ready to send.
type Dispatch struct {
	Event          model.NormalizedEvent
	Fingerprint    model.Fingerprint
	Decision       model.Decision
	RepeatCount    int
	Classification model.AssetClassification
	Risk           model.RiskLevel
	Text           string
}

// Delivery is the per-chat result of one dispatch, for audit logging.
type Delivery struct {
	ChatID int64
	Err    error
}

// Notifier fans a dispatch out to its recipients. Implementations return
// one Delivery per attempted chat and an overall error only when every
// attempt failed; partial failure is reported through the deliveries.
type Notifier interface {
	Send(ctx context.Context, d Dispatch) ([]Delivery, error)
}
