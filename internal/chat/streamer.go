package chat

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// EventType identifies one kind of stream event.
type EventType string

const (
	EventStart    EventType = "start"
	EventChunk    EventType = "chunk"
	EventCitation EventType = "citation"
	EventDone     EventType = "done"
	EventError    EventType = "error"
)

// Event is one element of the answer stream. Exactly one start event opens a
// stream and exactly one terminal event (done or error) closes it.
type Event struct {
	Type           EventType `json:"type"`
	SessionID      string    `json:"session_id,omitempty"`
	Content        string    `json:"content,omitempty"`
	Citation       *Citation `json:"citation,omitempty"`
	ResponseTimeMs int64     `json:"response_time_ms,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// StreamState is the answer state machine's position.
type StreamState int

const (
	StateStarted StreamState = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var (
	// ErrClientDisconnected means the consumer went away mid-stream. Logged,
	// not alarmed.
	ErrClientDisconnected = errors.New("client disconnected")

	// ErrUpstreamStream means the completion provider failed after streaming
	// began. Text already delivered stands.
	ErrUpstreamStream = errors.New("upstream stream failed")
)

// StreamOutcome summarizes a finished (or failed) stream run.
type StreamOutcome struct {
	State     StreamState
	Answer    string
	Citations []Citation
	Err       error
}

// Streamer drives a streaming completion call and forwards normalized events.
// It holds no session state; the session id is threaded through by the caller.
type Streamer struct {
	provider llm.Provider
	model    string
	maxReply int
}

func NewStreamer(provider llm.Provider, model string, maxReplyTokens int) *Streamer {
	if maxReplyTokens <= 0 {
		maxReplyTokens = 1024
	}
	return &Streamer{provider: provider, model: model, maxReply: maxReplyTokens}
}

// Run executes one answer stream, sending events on out. Events are pushed
// as they are produced; the unbuffered send is the backpressure point, so the
// full answer is never buffered ahead of the consumer. Run never closes out.
//
// Context cancellation (a client disconnect) aborts the upstream call and
// ends in StateFailed with ErrClientDisconnected; no terminal event is sent
// because nobody is listening.
func (s *Streamer) Run(ctx context.Context, sessionID string, prompt []llm.Message, admitted []vectordb.SearchResult, out chan<- Event) StreamOutcome {
	started := time.Now()

	fail := func(cause error, kind, userMsg string) StreamOutcome {
		if !errors.Is(cause, ErrClientDisconnected) {
			s.emit(ctx, out, Event{Type: EventError, Kind: kind, Message: userMsg})
		}
		return StreamOutcome{State: StateFailed, Err: cause}
	}

	if !s.emit(ctx, out, Event{Type: EventStart, SessionID: sessionID}) {
		return StreamOutcome{State: StateFailed, Err: ErrClientDisconnected}
	}

	stream, err := s.provider.Stream(ctx, llm.CompletionRequest{
		Model:     s.model,
		Messages:  prompt,
		MaxTokens: s.maxReply,
	})
	if err != nil {
		if ctx.Err() != nil {
			return fail(ErrClientDisconnected, "", "")
		}
		return fail(err, "upstream_unavailable", "answer generation is unavailable right now")
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return fail(ErrClientDisconnected, "", "")
			}
			return fail(errors.Join(ErrUpstreamStream, err), "upstream_stream_failed", "answer stream was interrupted")
		}
		if delta == "" {
			continue
		}
		answer.WriteString(delta)
		if !s.emit(ctx, out, Event{Type: EventChunk, Content: delta}) {
			return StreamOutcome{State: StateFailed, Err: ErrClientDisconnected}
		}
	}

	citations := deriveCitations(answer.String(), admitted)
	for i := range citations {
		if !s.emit(ctx, out, Event{Type: EventCitation, Citation: &citations[i]}) {
			return StreamOutcome{State: StateFailed, Err: ErrClientDisconnected}
		}
	}

	if !s.emit(ctx, out, Event{Type: EventDone, ResponseTimeMs: time.Since(started).Milliseconds()}) {
		return StreamOutcome{State: StateFailed, Err: ErrClientDisconnected}
	}

	return StreamOutcome{State: StateCompleted, Answer: answer.String(), Citations: citations}
}

// emit sends one event unless the consumer is gone.
func (s *Streamer) emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// deriveCitations maps bracketed markers in the answer back to the admitted
// chunks ([1] is the first excerpt in the prompt). An answer with no markers
// still cites the top-ranked chunk so every grounded answer carries at least
// one pointer into the corpus.
func deriveCitations(answer string, admitted []vectordb.SearchResult) []Citation {
	if len(admitted) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var order []int
	for _, m := range citationMarker.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(admitted) {
			continue
		}
		if !seen[n-1] {
			seen[n-1] = true
			order = append(order, n-1)
		}
	}
	if len(order) == 0 {
		order = []int{0}
	}

	citations := make([]Citation, 0, len(order))
	for _, idx := range order {
		citations = append(citations, toCitation(admitted[idx]))
	}
	return citations
}

func toCitation(res vectordb.SearchResult) Citation {
	score := res.Similarity
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return Citation{
		ChunkID: res.Entry.ID,
		Snippet: snippet(res.Entry.Text, 160),
		Score:   score,
		Source: Source{
			FilePath: res.Entry.Payload.FilePath,
			Chapter:  res.Entry.Payload.Chapter,
			Section:  res.Entry.Payload.Section,
			Heading:  res.Entry.Payload.HeadingText,
		},
	}
}

func snippet(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
