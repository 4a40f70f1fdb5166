package mcp

import (
	"context"
	"io"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docchat/internal/chat"
	"github.com/ziadkadry99/docchat/internal/corpus"
	"github.com/ziadkadry99/docchat/internal/db"
	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// mockEmbedder implements embeddings.Embedder for testing.
type mockEmbedder struct{}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1, 0, 0}
	}
	return result, nil
}
func (m *mockEmbedder) Dimensions() int { return 3 }
func (m *mockEmbedder) Name() string    { return "mock" }

// mockProvider answers every question with a fixed string.
type mockProvider struct{ answer string }

func (p *mockProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: p.answer}, nil
}

func (p *mockProvider) Stream(_ context.Context, _ llm.CompletionRequest) (llm.Stream, error) {
	return &mockStream{answer: p.answer}, nil
}

func (p *mockProvider) Name() string { return "mock" }

type mockStream struct {
	answer string
	sent   bool
}

func (s *mockStream) Recv() (string, error) {
	if s.sent {
		return "", io.EOF
	}
	s.sent = true
	return s.answer, nil
}

func (s *mockStream) Close() error { return nil }

func newTestServer(t *testing.T, entries []vectordb.Entry, docs []*corpus.Document) *Server {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	embedder := &mockEmbedder{}
	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) > 0 {
		if err := index.Upsert(context.Background(), entries); err != nil {
			t.Fatal(err)
		}
	}

	store := corpus.NewStore(database)
	for _, d := range docs {
		if err := store.Upsert(context.Background(), d); err != nil {
			t.Fatal(err)
		}
	}

	sessions := chat.NewSessionStore(0, 0)
	streamer := chat.NewStreamer(&mockProvider{answer: "the answer [1]"}, "test-model", 256)
	engine := chat.NewEngine(embedder, index, sessions, streamer, 5)

	return NewServer(engine, store)
}

func sampleEntries() []vectordb.Entry {
	return []vectordb.Entry{
		{
			ID:     "guide:0",
			Text:   "How to get started with the platform.",
			Vector: []float32{1, 0, 0},
			Payload: vectordb.Payload{
				DocumentID: "guide", ChunkIndex: 0,
				Chapter: "Guide", Section: "Getting Started",
				FilePath: "guide.md", TokenCount: 20,
			},
		},
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"search_corpus", searchCorpusTool, "search_corpus"},
		{"ask_corpus", askCorpusTool, "ask_corpus"},
		{"list_documents", listDocumentsTool, "list_documents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestHandleSearchCorpus(t *testing.T) {
	srv := newTestServer(t, sampleEntries(), nil)
	ctx := context.Background()

	t.Run("basic search", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "getting started"}

		result, err := srv.handleSearchCorpus(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
	})

	t.Run("missing query", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleSearchCorpus(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing query")
		}
	})

	t.Run("empty corpus", func(t *testing.T) {
		emptySrv := newTestServer(t, nil, nil)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "anything"}

		result, err := emptySrv.handleSearchCorpus(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("empty corpus should not be a tool error: %v", result.Content)
		}
	})
}

func TestHandleAskCorpus(t *testing.T) {
	srv := newTestServer(t, sampleEntries(), nil)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"question": "how do I start?"}

	result, err := srv.handleAskCorpus(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
}

func TestHandleListDocuments(t *testing.T) {
	docs := []*corpus.Document{
		{ID: "a", RelPath: "a.md", Chapter: "Alpha", ContentHash: "h", ChunkCount: 3, Status: corpus.StatusCompleted},
	}
	srv := newTestServer(t, nil, docs)

	req := mcp.CallToolRequest{}
	result, err := srv.handleListDocuments(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %v", result.Content)
	}
}
