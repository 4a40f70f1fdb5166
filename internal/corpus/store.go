package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ziadkadry99/docchat/internal/db"
)

// Store manages persistence of the document registry.
type Store struct {
	db *db.DB
}

// NewStore creates a new document registry store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// GetByPath retrieves a document by its relative path. Returns nil if absent.
func (s *Store) GetByPath(ctx context.Context, relPath string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, rel_path, title, chapter, section, content_hash, word_count, chunk_count, status, error, modified_at, ingested_at
		 FROM documents WHERE rel_path = ?`, relPath)
	return scanDocument(row)
}

// Get retrieves a document by id. Returns nil if absent.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, rel_path, title, chapter, section, content_hash, word_count, chunk_count, status, error, modified_at, ingested_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// Upsert inserts or replaces a document row keyed by relative path.
func (s *Store) Upsert(ctx context.Context, d *Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, rel_path, title, chapter, section, content_hash, word_count, chunk_count, status, error, modified_at, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(rel_path) DO UPDATE SET
		   title = excluded.title,
		   chapter = excluded.chapter,
		   section = excluded.section,
		   content_hash = excluded.content_hash,
		   word_count = excluded.word_count,
		   chunk_count = excluded.chunk_count,
		   status = excluded.status,
		   error = excluded.error,
		   modified_at = excluded.modified_at,
		   ingested_at = excluded.ingested_at`,
		d.ID, d.RelPath, d.Title, d.Chapter, d.Section, d.ContentHash,
		d.WordCount, d.ChunkCount, string(d.Status), d.Error,
		d.ModifiedAt, d.IngestedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", d.RelPath, err)
	}
	return nil
}

// SetStatus updates a document's processing status and error message.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ? WHERE id = ?`,
		string(status), errMsg, id)
	if err != nil {
		return fmt.Errorf("updating status for %s: %w", id, err)
	}
	return nil
}

// Counts returns the number of completed documents and their total chunks.
func (s *Store) Counts(ctx context.Context) (documents, chunks int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(chunk_count), 0) FROM documents WHERE status = 'completed'`)
	if err := row.Scan(&documents, &chunks); err != nil {
		return 0, 0, fmt.Errorf("counting documents: %w", err)
	}
	return documents, chunks, nil
}

// List returns all documents ordered by path.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rel_path, title, chapter, section, content_hash, word_count, chunk_count, status, error, modified_at, ingested_at
		 FROM documents ORDER BY rel_path`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*Document, error) {
	d, err := scanInto(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func scanDocumentRows(rows *sql.Rows) (*Document, error) {
	return scanInto(rows)
}

func scanInto(r rowScanner) (*Document, error) {
	var d Document
	var status string
	var modifiedAt, ingestedAt sql.NullTime
	err := r.Scan(&d.ID, &d.RelPath, &d.Title, &d.Chapter, &d.Section,
		&d.ContentHash, &d.WordCount, &d.ChunkCount, &status, &d.Error,
		&modifiedAt, &ingestedAt)
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	if modifiedAt.Valid {
		d.ModifiedAt = modifiedAt.Time
	}
	if ingestedAt.Valid {
		d.IngestedAt = ingestedAt.Time
	}
	return &d, nil
}

// touch returns the current UTC time truncated to seconds so SQLite
// round-trips cleanly.
func touch() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
