package embeddings

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding provider could not be reached
// after retries were exhausted. Callers must never receive a zero vector in
// place of this error.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}
