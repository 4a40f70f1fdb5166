package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// scriptedProvider replays a fixed delta sequence, optionally failing after
// failAfter deltas to simulate a mid-stream provider error.
type scriptedProvider struct {
	deltas    []string
	failAfter int // -1 means never fail
	streamErr error

	mu        sync.Mutex
	recvCalls int
	closed    bool
}

func newScriptedProvider(deltas ...string) *scriptedProvider {
	return &scriptedProvider{deltas: deltas, failAfter: -1}
}

func (p *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var full string
	for _, d := range p.deltas {
		full += d
	}
	return &llm.CompletionResponse{Content: full}, nil
}

func (p *scriptedProvider) Stream(_ context.Context, _ llm.CompletionRequest) (llm.Stream, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	return &scriptedStream{p: p}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) recvCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recvCalls
}

func (p *scriptedProvider) wasClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type scriptedStream struct {
	p   *scriptedProvider
	pos int
}

func (s *scriptedStream) Recv() (string, error) {
	s.p.mu.Lock()
	s.p.recvCalls++
	s.p.mu.Unlock()

	if s.p.failAfter >= 0 && s.pos >= s.p.failAfter {
		return "", errors.New("connection reset by provider")
	}
	if s.pos >= len(s.p.deltas) {
		return "", io.EOF
	}
	delta := s.p.deltas[s.pos]
	s.pos++
	return delta, nil
}

func (s *scriptedStream) Close() error {
	s.p.mu.Lock()
	s.p.closed = true
	s.p.mu.Unlock()
	return nil
}

func runStreamer(t *testing.T, ctx context.Context, s *Streamer, admitted []vectordb.SearchResult) ([]Event, StreamOutcome) {
	t.Helper()
	out := make(chan Event)
	done := make(chan StreamOutcome, 1)
	go func() {
		outcome := s.Run(ctx, "sess-1", []llm.Message{{Role: llm.RoleUser, Content: "q"}}, admitted, out)
		close(out)
		done <- outcome
	}()

	var events []Event
	for ev := range out {
		events = append(events, ev)
	}
	select {
	case outcome := <-done:
		return events, outcome
	case <-time.After(5 * time.Second):
		t.Fatal("streamer did not finish")
		return nil, StreamOutcome{}
	}
}

func TestStreamer_EventOrdering(t *testing.T) {
	provider := newScriptedProvider("The answer ", "is here ", "[1].")
	streamer := NewStreamer(provider, "test-model", 256)
	admitted := []vectordb.SearchResult{candidate("doc:1", "doc", 1, 100, 0.9)}

	events, outcome := runStreamer(t, context.Background(), streamer, admitted)

	if outcome.State != StateCompleted {
		t.Fatalf("expected completed, got %s (%v)", outcome.State, outcome.Err)
	}
	if outcome.Answer != "The answer is here [1]." {
		t.Errorf("unexpected answer %q", outcome.Answer)
	}

	var kinds []EventType
	for _, ev := range events {
		kinds = append(kinds, ev.Type)
	}
	want := []EventType{EventStart, EventChunk, EventChunk, EventChunk, EventCitation, EventDone}
	if len(kinds) != len(want) {
		t.Fatalf("got events %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}
	if events[0].SessionID != "sess-1" {
		t.Errorf("start event should carry the session id")
	}
	if events[len(events)-1].ResponseTimeMs < 0 {
		t.Errorf("done event should carry latency")
	}
}

func TestStreamer_ChunksArriveInGenerationOrder(t *testing.T) {
	provider := newScriptedProvider("a", "b", "c", "d")
	streamer := NewStreamer(provider, "test-model", 256)

	events, _ := runStreamer(t, context.Background(), streamer, nil)

	var got string
	for _, ev := range events {
		if ev.Type == EventChunk {
			got += ev.Content
		}
	}
	if got != "abcd" {
		t.Errorf("chunks out of order: %q", got)
	}
}

func TestStreamer_UpstreamFailureMidStream(t *testing.T) {
	provider := newScriptedProvider("partial ", "text ")
	provider.failAfter = 2
	streamer := NewStreamer(provider, "test-model", 256)

	events, outcome := runStreamer(t, context.Background(), streamer, nil)

	if outcome.State != StateFailed {
		t.Fatalf("expected failed, got %s", outcome.State)
	}
	if !errors.Is(outcome.Err, ErrUpstreamStream) {
		t.Errorf("expected ErrUpstreamStream, got %v", outcome.Err)
	}

	// Partial chunks stand, followed by exactly one terminal error event.
	var chunks, errs int
	for _, ev := range events {
		switch ev.Type {
		case EventChunk:
			chunks++
		case EventError:
			errs++
			if ev.Kind != "upstream_stream_failed" {
				t.Errorf("error kind = %q", ev.Kind)
			}
		case EventDone:
			t.Error("failed stream must not emit done")
		}
	}
	if chunks != 2 || errs != 1 {
		t.Errorf("got %d chunks and %d errors, want 2 and 1", chunks, errs)
	}
}

func TestStreamer_ClientDisconnectAbortsUpstream(t *testing.T) {
	provider := newScriptedProvider("one ", "two ", "three ", "four ", "five ")
	streamer := NewStreamer(provider, "test-model", 256)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Event)
	done := make(chan StreamOutcome, 1)
	go func() {
		done <- streamer.Run(ctx, "sess-1", []llm.Message{{Role: llm.RoleUser, Content: "q"}}, nil, out)
	}()

	// Consume through the second chunk event, then vanish.
	chunks := 0
	for ev := range out {
		if ev.Type == EventChunk {
			chunks++
			if chunks == 2 {
				break
			}
		}
	}
	cancel()

	var outcome StreamOutcome
	select {
	case outcome = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("streamer did not abort after disconnect")
	}

	if outcome.State != StateFailed || !errors.Is(outcome.Err, ErrClientDisconnected) {
		t.Fatalf("expected failed/client disconnected, got %s (%v)", outcome.State, outcome.Err)
	}
	if !provider.wasClosed() {
		t.Error("upstream stream should be released on disconnect")
	}
	// After the abort no further tokens are pulled: at most the two
	// delivered deltas plus the one in flight when the client vanished.
	if provider.recvCount() > 3 {
		t.Errorf("streamer kept consuming after disconnect: %d recv calls", provider.recvCount())
	}
}

func TestDeriveCitations(t *testing.T) {
	admitted := []vectordb.SearchResult{
		candidate("a:0", "a", 0, 100, 0.9),
		candidate("a:1", "a", 1, 100, 0.8),
		candidate("b:0", "b", 0, 100, 0.7),
	}

	t.Run("markers map to excerpts", func(t *testing.T) {
		got := deriveCitations("See [2] and also [2], plus [1].", admitted)
		if len(got) != 2 {
			t.Fatalf("expected 2 citations, got %d", len(got))
		}
		if got[0].ChunkID != "a:1" || got[1].ChunkID != "a:0" {
			t.Errorf("unexpected order: %s, %s", got[0].ChunkID, got[1].ChunkID)
		}
	})

	t.Run("out-of-range markers ignored", func(t *testing.T) {
		got := deriveCitations("Bogus [9] marker [0].", admitted)
		if len(got) != 1 || got[0].ChunkID != "a:0" {
			t.Errorf("expected top-chunk fallback, got %+v", got)
		}
	})

	t.Run("no markers falls back to top chunk", func(t *testing.T) {
		got := deriveCitations("An answer with no brackets.", admitted)
		if len(got) != 1 || got[0].ChunkID != "a:0" {
			t.Errorf("expected top-chunk fallback, got %+v", got)
		}
	})

	t.Run("nothing admitted means no citations", func(t *testing.T) {
		if got := deriveCitations("whatever [1]", nil); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}
