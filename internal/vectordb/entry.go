package vectordb

import "time"

// Entry is the persisted form of a text chunk: its embedding vector plus the
// payload metadata needed for citation and filtering.
type Entry struct {
	ID      string // Chunk id; upsert is idempotent on this.
	Text    string // Raw chunk text.
	Vector  []float32
	Payload Payload
}

// Payload holds structured information stored alongside each vector.
type Payload struct {
	DocumentID   string
	ChunkIndex   int
	Chapter      string
	Section      string
	HeadingLevel int
	HeadingText  string
	FilePath     string
	StartChar    int
	EndChar      int
	TokenCount   int
	CreatedAt    time.Time
}

// SearchResult pairs an entry with its cosine similarity to the query vector.
type SearchResult struct {
	Entry      Entry
	Similarity float32
}

// SearchFilter narrows search results by payload fields. Filtering happens
// inside the index, not by rescanning unrelated entries.
type SearchFilter struct {
	Chapter    *string
	DocumentID *string
}
