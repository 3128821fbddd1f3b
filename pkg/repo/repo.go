// Package repo provides a generic CRUD repository abstraction used by the
// graph layer to persist circuit components and simulation runs.
package repo

import "context"

// Repository is a generic store keyed by ID.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts bounds a List call. A zero Limit falls back to the backend default.
type ListOpts struct {
	Offset int
	Limit  int
	Filter map[string]any
}
