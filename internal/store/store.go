// Package store persists cached entity records locally. The pipeline only
// consults the cache coordinator for staleness; the actual record bytes
// live here.
package store

import (
	"context"
	"encoding/json"
)

// LocalStore holds ordered record sets per entity type. Replace swaps the
// whole set atomically so a concurrent Fetch never observes a
// half-replaced set.
type LocalStore interface {
	// Fetch returns the records for entityType in stored order.
	Fetch(ctx context.Context, entityType string) ([]json.RawMessage, error)

	// Replace atomically swaps the records for entityType.
	Replace(ctx context.Context, entityType string, records []json.RawMessage) error

	// Count returns the number of stored records for entityType.
	Count(ctx context.Context, entityType string) (int, error)
}
