package corpus

import (
	"context"
	"testing"

	"github.com/ziadkadry99/docchat/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &Document{
		ID:          "doc-1",
		RelPath:     "guide/ch01.md",
		Title:       "Getting Started",
		Chapter:     "Getting Started",
		ContentHash: "abc123",
		WordCount:   400,
		ChunkCount:  3,
		Status:      StatusCompleted,
	}
	if err := store.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := store.GetByPath(ctx, "guide/ch01.md")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("document not found after upsert")
	}
	if got.Title != "Getting Started" || got.ChunkCount != 3 || got.Status != StatusCompleted {
		t.Errorf("unexpected document %+v", got)
	}

	// Same rel_path updates in place instead of inserting a second row.
	doc.ContentHash = "def456"
	doc.ChunkCount = 5
	if err := store.Upsert(ctx, doc); err != nil {
		t.Fatal(err)
	}
	docs, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].ContentHash != "def456" || docs[0].ChunkCount != 5 {
		t.Errorf("upsert did not update row: %+v", docs[0])
	}
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetByPath(context.Background(), "nope.md")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for missing document, got %+v", got)
	}
}

func TestStore_CountsOnlyCompleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []*Document{
		{ID: "a", RelPath: "a.md", ContentHash: "h1", ChunkCount: 4, Status: StatusCompleted},
		{ID: "b", RelPath: "b.md", ContentHash: "h2", ChunkCount: 6, Status: StatusCompleted},
		{ID: "c", RelPath: "c.md", ContentHash: "h3", ChunkCount: 9, Status: StatusFailed},
	}
	for _, doc := range seed {
		if err := store.Upsert(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	docs, chunks, err := store.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if docs != 2 {
		t.Errorf("expected 2 completed documents, got %d", docs)
	}
	if chunks != 10 {
		t.Errorf("expected 10 chunks, got %d", chunks)
	}
}

func TestStore_SetStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &Document{ID: "a", RelPath: "a.md", ContentHash: "h1", Status: StatusProcessing}
	if err := store.Upsert(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus(ctx, "a", StatusFailed, "chunker choked"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusFailed || got.Error != "chunker choked" {
		t.Errorf("unexpected document %+v", got)
	}
}
