package eventstore

import (
	"context"
	"time"
)

// Store persists build events append-only.
type Store interface {
	// Append adds e to the store. A zero timestamp is replaced with the current time.
	Append(ctx context.Context, e Event) error

	// GetByBuildID retrieves all events for a specific build, oldest first.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)

	// GetRange retrieves events within a time range (inclusive), oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
