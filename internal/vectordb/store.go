package vectordb

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the vector index cannot be reached or
// queried. Callers can chain to a fallback answer instead of hanging.
var ErrUnavailable = errors.New("vector index unavailable")

// VectorIndex defines the interface for storing and searching chunk vectors.
type VectorIndex interface {
	// Upsert adds or replaces entries, idempotent on entry id.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns the k entries most similar to the query vector,
	// optionally narrowed by a metadata filter.
	Search(ctx context.Context, queryVector []float32, k int, filter *SearchFilter) ([]SearchResult, error)

	// DeleteByDocument removes every entry belonging to the given document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count returns the total number of entries in the index.
	Count() int

	// Persist saves the index to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the index from the given directory.
	Load(ctx context.Context, dir string) error
}
