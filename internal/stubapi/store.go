// Package stubapi implements a development stand-in for the Savor platform
// API: the same wire contract the production backend serves, backed by an
// in-memory or Postgres store, so the client layer can run and be
// integration-tested without the real service.
package stubapi

import (
	"context"
	"errors"
)

// Resources served by the stub. Users are admin-only.
const (
	ResourceFoods       = "foods"
	ResourceRestaurants = "restaurants"
	ResourceUsers       = "users"
)

// ErrNoSuchEntity is returned by stores for lookups of unknown ids.
var ErrNoSuchEntity = errors.New("entity not found")

// ValidResource reports whether name is a collection the stub serves.
func ValidResource(name string) bool {
	switch name {
	case ResourceFoods, ResourceRestaurants, ResourceUsers:
		return true
	}
	return false
}

// ListParams are the query parameters of a list request.
type ListParams struct {
	Page     int
	PerPage  int
	Search   string // case-insensitive substring match on name
	Status   string // exact match on the status field
	Category string // exact match on the category field
}

// Store is the persistence boundary of the stub server. Entities are
// schemaless documents; the store preserves insertion order for stable
// pagination.
type Store interface {
	// List returns one page of a resource plus the total count matching
	// the filters (before pagination).
	List(ctx context.Context, resource string, p ListParams) (items []map[string]any, total int, err error)

	// Get returns a single entity or ErrNoSuchEntity.
	Get(ctx context.Context, resource, id string) (map[string]any, error)

	// Create stores a new entity. The store assigns the id when the
	// document has none, and returns the stored document.
	Create(ctx context.Context, resource string, doc map[string]any) (map[string]any, error)

	// Update merges changed fields into an existing entity and returns the
	// updated document, or ErrNoSuchEntity.
	Update(ctx context.Context, resource, id string, changes map[string]any) (map[string]any, error)

	// Delete removes an entity, or returns ErrNoSuchEntity.
	Delete(ctx context.Context, resource, id string) error

	// FindUserByEmail returns the user document holding the given email,
	// or ErrNoSuchEntity. Used by the login handler.
	FindUserByEmail(ctx context.Context, email string) (map[string]any, error)
}
