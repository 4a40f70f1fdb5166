package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/docchat/internal/embeddings"
)

const collectionName = "corpus"

// ChromemIndex implements VectorIndex using chromem-go. The store is embedded
// in-process; index failures are still reported as ErrUnavailable so callers
// treat them as a distinct outage kind.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemIndex creates a new in-memory ChromemIndex. The embedder is only
// consulted by chromem for entries added without a precomputed vector.
func NewChromemIndex(embedder embeddings.Embedder) (*ChromemIndex, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemIndex{
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Text,
			Embedding: e.Vector,
			Metadata:  payloadToMap(e.Payload),
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: upsert: %s", ErrUnavailable, err)
	}
	return nil
}

func (s *ChromemIndex) Search(ctx context.Context, queryVector []float32, k int, filter *SearchFilter) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	where := buildWhereClause(filter)

	results, err := s.collection.QueryEmbedding(ctx, queryVector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %s", ErrUnavailable, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			Entry: Entry{
				ID:      r.ID,
				Text:    r.Content,
				Vector:  r.Embedding,
				Payload: mapToPayload(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}

	return searchResults, nil
}

func (s *ChromemIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	where := map[string]string{"document_id": documentID}
	if err := s.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("%w: delete: %s", ErrUnavailable, err)
	}
	return nil
}

func (s *ChromemIndex) Count() int {
	return s.collection.Count()
}

func (s *ChromemIndex) Persist(ctx context.Context, dir string) error {
	return s.db.ExportToFile(dir+"/chromem.gob.gz", true, "")
}

func (s *ChromemIndex) Load(ctx context.Context, dir string) error {
	err := s.db.ImportFromFile(dir+"/chromem.gob.gz", "")
	if err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

// payloadToMap converts a Payload to a flat map[string]string for chromem.
func payloadToMap(p Payload) map[string]string {
	return map[string]string{
		"document_id":   p.DocumentID,
		"chunk_index":   strconv.Itoa(p.ChunkIndex),
		"chapter":       p.Chapter,
		"section":       p.Section,
		"heading_level": strconv.Itoa(p.HeadingLevel),
		"heading_text":  p.HeadingText,
		"file_path":     p.FilePath,
		"start_char":    strconv.Itoa(p.StartChar),
		"end_char":      strconv.Itoa(p.EndChar),
		"token_count":   strconv.Itoa(p.TokenCount),
		"created_at":    p.CreatedAt.Format(time.RFC3339),
	}
}

// mapToPayload converts a flat map[string]string back to a Payload.
func mapToPayload(m map[string]string) Payload {
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	headingLevel, _ := strconv.Atoi(m["heading_level"])
	startChar, _ := strconv.Atoi(m["start_char"])
	endChar, _ := strconv.Atoi(m["end_char"])
	tokenCount, _ := strconv.Atoi(m["token_count"])
	createdAt, _ := time.Parse(time.RFC3339, m["created_at"])

	return Payload{
		DocumentID:   m["document_id"],
		ChunkIndex:   chunkIndex,
		Chapter:      m["chapter"],
		Section:      m["section"],
		HeadingLevel: headingLevel,
		HeadingText:  m["heading_text"],
		FilePath:     m["file_path"],
		StartChar:    startChar,
		EndChar:      endChar,
		TokenCount:   tokenCount,
		CreatedAt:    createdAt,
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}

	where := make(map[string]string)
	if filter.Chapter != nil {
		where["chapter"] = *filter.Chapter
	}
	if filter.DocumentID != nil {
		where["document_id"] = *filter.DocumentID
	}

	if len(where) == 0 {
		return nil
	}
	return where
}
