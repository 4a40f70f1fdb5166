package corpus

import "time"

// Status tracks a document's position in the ingestion lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document is a source content unit in the registry. Re-ingesting unchanged
// content (same hash) is a no-op; a changed hash triggers re-chunking and
// re-embedding of that document only.
type Document struct {
	ID          string
	RelPath     string
	Title       string
	Chapter     string
	Section     string
	ContentHash string
	WordCount   int
	ChunkCount  int
	Status      Status
	Error       string
	ModifiedAt  time.Time
	IngestedAt  time.Time
}
