package enrich

import (
	"context"

	"soc-alert-relay-go/internal/model"
)

// Narrator turns an enriched event into a human-written notification text.
// It is optional: a nil narrator or any narration error falls back to
// Summary. Narration never influences dedup decisions.
type Narrator interface {
	Narrate(ctx context.Context, ev model.NormalizedEvent, cls model.AssetClassification, a Assessment, repeats int) (string, error)
}
