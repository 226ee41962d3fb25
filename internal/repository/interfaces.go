package repository

import (
	"context"
	"time"

	"valshop-api/internal/model"
)

// UserRepository persists one user record per local session id.
type UserRepository interface {
	// Get returns the record for a session id, or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*model.User, error)

	// Save inserts or replaces a record.
	Save(ctx context.Context, user *model.User) error

	// Delete removes a record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// ListIDs returns every stored session id.
	ListIDs(ctx context.Context) ([]string, error)

	// PurgePending removes records whose second-factor challenge was issued
	// before olderThan ago and never completed.
	PurgePending(ctx context.Context, olderThan time.Duration) (int64, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Close releases the underlying storage.
	Close() error
}
