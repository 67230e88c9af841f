package port

import (
	"context"

	"github.com/km2209/onion-gateway/internal/core/domain"
)

// ResourceStore is the authoritative owner of all resources. Implementations
// must apply mutations on a single resource atomically: two concurrent
// updates to the same id serialize so that one observes the other's version
// bump. Deleted ids are tombstoned and never reissued.
type ResourceStore interface {
	// Create assigns a fresh id and version 1. Fails with
	// domain.ErrInvalidInput when title is empty.
	Create(ctx context.Context, title, description string) (domain.Resource, error)

	// Get fails with domain.ErrNotFound for unknown or tombstoned ids.
	Get(ctx context.Context, id string) (domain.Resource, error)

	// List returns all live resources in creation order.
	List(ctx context.Context) ([]domain.Resource, error)

	// Update applies only the supplied fields when expectedVersion matches
	// the current version, bumping the version. Nil fields are left
	// untouched.
	Update(ctx context.Context, id string, expectedVersion int64, title, description *string) (domain.Resource, error)

	// Delete tombstones the id when expectedVersion matches.
	Delete(ctx context.Context, id string, expectedVersion int64) error

	// Close releases any backend connections.
	Close(ctx context.Context) error
}
