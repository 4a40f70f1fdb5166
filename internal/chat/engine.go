package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ziadkadry99/docchat/internal/embeddings"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

const (
	embedTimeout  = 15 * time.Second
	searchTimeout = 10 * time.Second

	// DefaultTopK is how many candidates retrieval hands to the assembler.
	DefaultTopK = 10
)

// ChatRequest is one question against the corpus. SessionID is optional; a
// fresh session is created when it is empty, unknown, or expired. Chapter
// optionally restricts retrieval to one chapter.
type ChatRequest struct {
	Question            string
	SessionID           string
	Chapter             string
	ContextWindowTokens int
}

// Engine wires retrieval and answering together: embed the question, search
// the index, assemble a budgeted context, stream the answer, then record the
// exchange. Each call runs independently; the session store serializes the
// only same-session race.
type Engine struct {
	embedder embeddings.Embedder
	index    vectordb.VectorIndex
	sessions *SessionStore
	streamer *Streamer
	topK     int
}

func NewEngine(embedder embeddings.Embedder, index vectordb.VectorIndex, sessions *SessionStore, streamer *Streamer, topK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		embedder: embedder,
		index:    index,
		sessions: sessions,
		streamer: streamer,
		topK:     topK,
	}
}

// Sessions exposes the conversation store for transports that need direct
// history access.
func (e *Engine) Sessions() *SessionStore { return e.sessions }

// Chat answers one question, pushing events on the returned channel. The
// channel is unbuffered so event delivery runs at the consumer's pace, and it
// is closed once the stream reaches a terminal state. Cancel ctx to abort.
//
// Failures before streaming begins surface as a single error event with no
// chunk events ever sent.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		e.run(ctx, req, out)
	}()
	return out
}

func (e *Engine) run(ctx context.Context, req ChatRequest, out chan<- Event) {
	sess := e.sessions.GetOrCreate(req.SessionID)
	history := sess.Messages

	vec, err := e.embedQuestion(ctx, req.Question)
	if err != nil {
		log.Printf("[chat] embed query failed (session %s): %v", sess.ID, err)
		e.sendError(ctx, out, sess.ID, "embedding_unavailable", "could not process the question right now")
		return
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	candidates, err := e.index.Search(searchCtx, vec, e.topK, searchFilter(req))
	cancel()
	if err != nil {
		log.Printf("[chat] vector search failed (session %s): %v", sess.ID, err)
		e.sendError(ctx, out, sess.ID, "vector_index_unavailable", "the corpus index is unavailable right now")
		return
	}

	window := req.ContextWindowTokens
	if window <= 0 {
		window = DefaultContextWindowTokens
	}
	reserved := estimateTokens(answerSystemPrompt) + estimateTokens(req.Question)
	for _, turn := range history {
		reserved += turn.TokenCount
	}
	assembled := AssembleContext(candidates, window, reserved)
	if assembled.Oversized {
		log.Printf("[chat] top candidate alone exceeds %d-token window (session %s), truncating", window, sess.ID)
	}

	prompt := buildPrompt(req.Question, history, assembled, window)
	outcome := e.streamer.Run(ctx, sess.ID, prompt, assembled.Chunks, out)

	switch {
	case outcome.State == StateCompleted:
		e.sessions.Append(sess.ID, Message{Role: RoleUser, Content: req.Question})
		e.sessions.Append(sess.ID, Message{Role: RoleAssistant, Content: outcome.Answer, Citations: outcome.Citations})
	case errors.Is(outcome.Err, ErrClientDisconnected):
		log.Printf("[chat] client disconnected mid-stream (session %s)", sess.ID)
	default:
		log.Printf("[chat] stream failed (session %s): %v", sess.ID, outcome.Err)
	}
}

// Answer runs the full pipeline without a live consumer, collecting the
// answer and citations. Used by non-streaming callers.
func (e *Engine) Answer(ctx context.Context, req ChatRequest) (string, []Citation, error) {
	events := e.Chat(ctx, req)
	var answer string
	var citations []Citation
	for ev := range events {
		switch ev.Type {
		case EventChunk:
			answer += ev.Content
		case EventCitation:
			if ev.Citation != nil {
				citations = append(citations, *ev.Citation)
			}
		case EventError:
			return "", nil, errors.New(ev.Message)
		}
	}
	return answer, citations, nil
}

// Search embeds the query and returns ranked candidates without generating
// an answer.
func (e *Engine) Search(ctx context.Context, query, chapter string, k int) ([]vectordb.SearchResult, error) {
	vec, err := e.embedQuestion(ctx, query)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = e.topK
	}
	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()
	var filter *vectordb.SearchFilter
	if chapter != "" {
		filter = &vectordb.SearchFilter{Chapter: &chapter}
	}
	return e.index.Search(searchCtx, vec, k, filter)
}

func (e *Engine) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()
	vecs, err := e.embedder.Embed(embedCtx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errors.New("embedding provider returned wrong batch size")
	}
	return vecs[0], nil
}

func (e *Engine) sendError(ctx context.Context, out chan<- Event, sessionID, kind, msg string) {
	events := []Event{
		{Type: EventStart, SessionID: sessionID},
		{Type: EventError, Kind: kind, Message: msg},
	}
	for _, ev := range events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func searchFilter(req ChatRequest) *vectordb.SearchFilter {
	if req.Chapter == "" {
		return nil
	}
	return &vectordb.SearchFilter{Chapter: &req.Chapter}
}
