package corpus

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/docchat/internal/chunker"
	"github.com/ziadkadry99/docchat/internal/embeddings"
	"github.com/ziadkadry99/docchat/internal/vectordb"
	"github.com/ziadkadry99/docchat/internal/walker"
)

// embedTimeout bounds each outbound embedding call, independently of the
// overall ingestion deadline.
const embedTimeout = 60 * time.Second

// ProgressFunc is invoked after each document is processed or skipped.
type ProgressFunc func(processed, total int, relPath string)

// Options controls a single ingestion run. OnProgress belongs to the run, not
// the pipeline, so concurrent runs report to their own callers.
type Options struct {
	ContentPath  string
	ForceReindex bool
	BatchSize    int // Chunks per embedding call (default 32).
	Include      []string
	Exclude      []string
	OnProgress   ProgressFunc
}

// Result summarizes an ingestion run. Per-document failures are isolated:
// they appear in Errors and as failed registry rows but never abort sibling
// documents.
type Result struct {
	DocumentsTotal int
	Processed      int
	Skipped        int
	Failed         int
	ChunksIndexed  int
	Errors         []error
	Duration       time.Duration
}

// Pipeline orchestrates the ingestion workflow: walk -> chunk -> embed -> index.
type Pipeline struct {
	store     *Store
	index     vectordb.VectorIndex
	embedder  embeddings.Embedder
	chunkOpts chunker.Options
	dataDir   string
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store *Store, index vectordb.VectorIndex, embedder embeddings.Embedder, chunkOpts chunker.Options, dataDir string) *Pipeline {
	return &Pipeline{
		store:     store,
		index:     index,
		embedder:  embedder,
		chunkOpts: chunkOpts,
		dataDir:   dataDir,
	}
}

// Run executes a full ingestion pass over the content directory.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	files, err := walker.Walk(walker.WalkerConfig{
		RootDir: opts.ContentPath,
		Include: opts.Include,
		Exclude: opts.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("walking content dir: %w", err)
	}

	result := &Result{DocumentsTotal: len(files)}

	report := opts.OnProgress
	if report == nil {
		report = func(int, int, string) {}
	}

	for i, f := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		existing, err := p.store.GetByPath(ctx, f.RelPath)
		if err != nil {
			return result, fmt.Errorf("registry lookup for %s: %w", f.RelPath, err)
		}

		// Unchanged content is a no-op: no chunking, no embedding calls.
		if !opts.ForceReindex && existing != nil && existing.Status == StatusCompleted && existing.ContentHash == f.ContentHash {
			result.Skipped++
			report(i+1, len(files), f.RelPath)
			continue
		}

		n, err := p.ingestDocument(ctx, existing, f, batchSize)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", f.RelPath, err))
			log.Printf("ingest: document %s failed: %v", f.RelPath, err)
		} else {
			result.Processed++
			result.ChunksIndexed += n
		}
		report(i+1, len(files), f.RelPath)
	}

	if p.dataDir != "" {
		if err := p.index.Persist(ctx, p.dataDir); err != nil {
			return result, fmt.Errorf("persisting index: %w", err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// ingestDocument chunks, embeds, and indexes a single document, replacing any
// previous entries for it. Returns the number of chunks indexed.
func (p *Pipeline) ingestDocument(ctx context.Context, existing *Document, f walker.FileInfo, batchSize int) (int, error) {
	doc := existing
	if doc == nil {
		doc = &Document{ID: uuid.New().String(), RelPath: f.RelPath, Status: StatusPending}
	}
	doc.ContentHash = f.ContentHash
	doc.ModifiedAt = f.ModTime.UTC().Truncate(time.Second)
	doc.Status = StatusProcessing
	doc.Error = ""

	if err := p.store.Upsert(ctx, doc); err != nil {
		return 0, err
	}

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		p.markFailed(ctx, doc.ID, err)
		return 0, fmt.Errorf("reading: %w", err)
	}
	text := string(raw)

	chunks, err := chunker.Split(text, p.chunkOpts)
	if err != nil {
		p.markFailed(ctx, doc.ID, err)
		return 0, fmt.Errorf("chunking: %w", err)
	}
	if len(chunks) == 0 {
		log.Printf("ingest: %s has no body text, indexing nothing", f.RelPath)
	}

	entries, err := p.embedChunks(ctx, doc.ID, f.RelPath, chunks, batchSize)
	if err != nil {
		p.markFailed(ctx, doc.ID, err)
		return 0, err
	}

	// Replace the document's entries wholesale.
	if err := p.index.DeleteByDocument(ctx, doc.ID); err != nil {
		p.markFailed(ctx, doc.ID, err)
		return 0, err
	}
	if err := p.index.Upsert(ctx, entries); err != nil {
		p.markFailed(ctx, doc.ID, err)
		return 0, err
	}

	doc.Title = documentTitle(chunks, f.RelPath)
	doc.Chapter = documentChapter(chunks)
	doc.WordCount = len(strings.Fields(text))
	doc.ChunkCount = len(chunks)
	doc.Status = StatusCompleted
	doc.IngestedAt = touch()
	if err := p.store.Upsert(ctx, doc); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// embedChunks converts chunks to index entries, embedding them in batches.
func (p *Pipeline) embedChunks(ctx context.Context, docID, relPath string, chunks []chunker.Chunk, batchSize int) ([]vectordb.Entry, error) {
	entries := make([]vectordb.Entry, 0, len(chunks))
	now := touch()

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		vectors, err := p.embedder.Embed(embedCtx, texts)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", i, end-1, err)
		}

		for j, c := range batch {
			entries = append(entries, vectordb.Entry{
				ID:     fmt.Sprintf("%s:%d", docID, c.Index),
				Text:   c.Text,
				Vector: vectors[j],
				Payload: vectordb.Payload{
					DocumentID:   docID,
					ChunkIndex:   c.Index,
					Chapter:      c.Chapter,
					Section:      c.Section,
					HeadingLevel: c.HeadingLevel,
					HeadingText:  c.HeadingText,
					FilePath:     relPath,
					StartChar:    c.StartChar,
					EndChar:      c.EndChar,
					TokenCount:   c.TokenCount,
					CreatedAt:    now,
				},
			})
		}
	}
	return entries, nil
}

func (p *Pipeline) markFailed(ctx context.Context, id string, cause error) {
	if err := p.store.SetStatus(ctx, id, StatusFailed, cause.Error()); err != nil {
		log.Printf("ingest: recording failure for %s: %v", id, err)
	}
}

// documentTitle derives a display title from the first governing chapter
// heading, falling back to the filename stem.
func documentTitle(chunks []chunker.Chunk, relPath string) string {
	for _, c := range chunks {
		if c.Chapter != "" {
			return c.Chapter
		}
	}
	base := relPath
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func documentChapter(chunks []chunker.Chunk) string {
	for _, c := range chunks {
		if c.Chapter != "" {
			return c.Chapter
		}
	}
	return ""
}
