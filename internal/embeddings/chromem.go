package embeddings

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ToChromemFunc converts an Embedder into a chromem.EmbeddingFunc. The index
// only consults this for documents added without a precomputed vector; the
// ingestion pipeline always precomputes, so in practice this guards against
// misuse rather than serving the hot path.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		results, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 || len(results[0]) == 0 {
			return nil, fmt.Errorf("embedder %s returned no vector", e.Name())
		}
		return results[0], nil
	}
}
