package state

import (
	"context"
	"time"
)

// Availability is the last observed reachability of a backend.
type Availability struct {
	// Whether the backend answered its most recent probe.
	Available bool `json:"available"`

	// When the probe finished. Zero if the backend was never probed.
	CheckedAt time.Time `json:"checked_at"`
}

// Manager stores the availability side channel read by the observability endpoints.
// Routing decisions never read it back; they use the probe's own return value.
type Manager interface {
	// Overwrites the recorded availability of the backend with the current time.
	SaveAvailability(ctx context.Context, backend string, available bool) error

	// Loads the recorded availability. Returns the zero value if nothing was recorded.
	LoadAvailability(ctx context.Context, backend string) (Availability, error)
}
