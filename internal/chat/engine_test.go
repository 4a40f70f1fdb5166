package chat

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// vectorEmbedder maps known texts to fixed vectors so retrieval ranking is
// fully under the test's control. Unknown texts get a far-away vector.
type vectorEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *vectorEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := e.vectors[text]; ok {
			out[i] = normalize(vec)
		} else {
			out[i] = normalize([]float32{0, 0, 0, 1})
		}
	}
	return out, nil
}

func (e *vectorEmbedder) Dimensions() int { return 4 }
func (e *vectorEmbedder) Name() string    { return "vector-stub" }

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestEngine_CitesTheMatchingChunk(t *testing.T) {
	// Three chunks of one document, each along its own axis. The question
	// points straight at chunk 2.
	texts := map[string][]float32{
		"intro text":         {1, 0, 0, 0},
		"installation steps": {0, 1, 0, 0},
		"troubleshooting":    {0, 0, 1, 0},
		"how do I install?":  {0, 1, 0.1, 0},
	}
	embedder := &vectorEmbedder{vectors: texts}

	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		t.Fatal(err)
	}
	entries := []vectordb.Entry{
		{ID: "guide:0", Text: "intro text", Vector: normalize(texts["intro text"]), Payload: vectordb.Payload{DocumentID: "guide", ChunkIndex: 0, Chapter: "Guide", Section: "Introduction", TokenCount: 50}},
		{ID: "guide:1", Text: "installation steps", Vector: normalize(texts["installation steps"]), Payload: vectordb.Payload{DocumentID: "guide", ChunkIndex: 1, Chapter: "Guide", Section: "Installation", TokenCount: 50}},
		{ID: "guide:2", Text: "troubleshooting", Vector: normalize(texts["troubleshooting"]), Payload: vectordb.Payload{DocumentID: "guide", ChunkIndex: 2, Chapter: "Guide", Section: "Troubleshooting", TokenCount: 50}},
	}
	if err := index.Upsert(context.Background(), entries); err != nil {
		t.Fatal(err)
	}

	provider := newScriptedProvider("Run the installer ", "as described in [1].")
	engine := NewEngine(embedder, index, NewSessionStore(0, 0), NewStreamer(provider, "test-model", 256), 3)

	events := collectEvents(t, engine.Chat(context.Background(), ChatRequest{Question: "how do I install?"}))

	var citations []Citation
	for _, ev := range events {
		if ev.Type == EventCitation && ev.Citation != nil {
			citations = append(citations, *ev.Citation)
		}
	}
	if len(citations) != 1 {
		t.Fatalf("expected exactly 1 citation, got %d", len(citations))
	}
	if citations[0].ChunkID != "guide:1" {
		t.Errorf("cited %s, want guide:1", citations[0].ChunkID)
	}
	if citations[0].Source.Chapter != "Guide" || citations[0].Source.Section != "Installation" {
		t.Errorf("unexpected source %+v", citations[0].Source)
	}
	if citations[0].Score < 0 || citations[0].Score > 1 {
		t.Errorf("score %f out of range", citations[0].Score)
	}
}

func TestEngine_RecordsExchangeInSession(t *testing.T) {
	embedder := &vectorEmbedder{vectors: map[string][]float32{}}
	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		t.Fatal(err)
	}
	sessions := NewSessionStore(0, 0)
	provider := newScriptedProvider("hello there")
	engine := NewEngine(embedder, index, sessions, NewStreamer(provider, "test-model", 256), 3)

	events := collectEvents(t, engine.Chat(context.Background(), ChatRequest{Question: "hi"}))
	if len(events) == 0 || events[0].Type != EventStart {
		t.Fatal("expected a start event first")
	}
	sessionID := events[0].SessionID

	sess, ok := sessions.Get(sessionID)
	if !ok {
		t.Fatal("session should exist after the exchange")
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected user+assistant turns, got %d messages", len(sess.Messages))
	}
	if sess.Messages[0].Role != RoleUser || sess.Messages[0].Content != "hi" {
		t.Errorf("unexpected user turn %+v", sess.Messages[0])
	}
	if sess.Messages[1].Role != RoleAssistant || sess.Messages[1].Content != "hello there" {
		t.Errorf("unexpected assistant turn %+v", sess.Messages[1])
	}
}

func TestEngine_EmbedFailureIsSingleErrorEvent(t *testing.T) {
	embedder := &vectorEmbedder{err: errors.New("provider down")}
	index, err := vectordb.NewChromemIndex(&vectorEmbedder{})
	if err != nil {
		t.Fatal(err)
	}
	provider := newScriptedProvider("never used")
	engine := NewEngine(embedder, index, NewSessionStore(0, 0), NewStreamer(provider, "test-model", 256), 3)

	events := collectEvents(t, engine.Chat(context.Background(), ChatRequest{Question: "hi"}))

	var chunks, errs int
	for _, ev := range events {
		switch ev.Type {
		case EventChunk:
			chunks++
		case EventError:
			errs++
			if ev.Kind != "embedding_unavailable" {
				t.Errorf("error kind = %q", ev.Kind)
			}
		}
	}
	if chunks != 0 {
		t.Errorf("no chunk events may precede a pre-stream failure, got %d", chunks)
	}
	if errs != 1 {
		t.Errorf("expected a single error event, got %d", errs)
	}
	if provider.recvCount() != 0 {
		t.Error("completion provider must not be touched when embedding fails")
	}
}

func TestEngine_Search(t *testing.T) {
	texts := map[string][]float32{
		"alpha body": {1, 0, 0, 0},
		"beta body":  {0, 1, 0, 0},
		"find alpha": {1, 0.1, 0, 0},
	}
	embedder := &vectorEmbedder{vectors: texts}
	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		t.Fatal(err)
	}
	entries := []vectordb.Entry{
		{ID: "a:0", Text: "alpha body", Vector: normalize(texts["alpha body"]), Payload: vectordb.Payload{DocumentID: "a", Chapter: "Alpha", TokenCount: 10}},
		{ID: "b:0", Text: "beta body", Vector: normalize(texts["beta body"]), Payload: vectordb.Payload{DocumentID: "b", Chapter: "Beta", TokenCount: 10}},
	}
	if err := index.Upsert(context.Background(), entries); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine(embedder, index, NewSessionStore(0, 0), NewStreamer(newScriptedProvider(), "m", 256), 5)

	results, err := engine.Search(context.Background(), "find alpha", "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Entry.ID != "a:0" {
		t.Fatalf("unexpected ranking: %+v", results)
	}

	// Chapter filter narrows to the one chapter.
	results, err = engine.Search(context.Background(), "find alpha", "Beta", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Entry.ID != "b:0" {
		t.Fatalf("filter not applied: %+v", results)
	}
}
