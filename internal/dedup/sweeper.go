package dedup

import (
	"context"
	"time"
)

// Sweeper is implemented by stores that can discard records of retired
// windows. Sweeping is an optimization: expired records are superseded
// lazily on the next arrival either way, sweeping only bounds growth on
// long-running processes. Stores with native expiry (Redis TTLs) do not
// implement it.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}
