package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves build events.
type Store interface {
	// Append adds an event to the store.
	Append(ctx context.Context, e Event) error

	// GetByBuildID retrieves all events for a build in append order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)

	// GetRange retrieves events with timestamps in [start, end] in append order.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close releases the store.
	Close() error
}
