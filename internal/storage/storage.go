// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"carwatch/internal/model"
)

// Storage is the interface for all persistence operations. It exclusively
// owns persisted listing state.
type Storage interface {
	// Upsert inserts a new listing or refreshes an existing one by external
	// ID, advancing LastSeenAt and preserving FirstSeenAt.
	Upsert(ctx context.Context, listing *model.Listing) (model.UpsertResult, error)

	// PurgeStale deletes every listing not seen within the retention window
	// and returns the number removed.
	PurgeStale(ctx context.Context, retention time.Duration) (int64, error)

	// Count and Latest are read helpers for diagnostics.
	Count(ctx context.Context) (int64, error)
	Latest(ctx context.Context, n int) ([]model.Listing, error)

	Close() error
}
