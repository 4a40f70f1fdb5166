package chat

import (
	"sort"

	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// DefaultContextWindowTokens is the budget for assembled context plus the
// reserved query/history tokens.
const DefaultContextWindowTokens = 3000

// AssembledContext is the outcome of budget-limited candidate selection.
// Oversized is set when even the best candidate alone exceeds the budget and
// was returned anyway; prompt construction truncates it as a last resort.
type AssembledContext struct {
	Chunks      []vectordb.SearchResult
	TotalTokens int
	Oversized   bool
}

// AssembleContext selects retrieved candidates into a token budget. Candidates
// are ranked by descending similarity, ties broken by lower chunk ordinal
// (earlier context first). Chunks are admitted whole or not at all; selection
// stops at the first candidate that would overflow. reservedTokens accounts
// for the query and conversation history already committed to the prompt.
func AssembleContext(candidates []vectordb.SearchResult, maxTokens, reservedTokens int) AssembledContext {
	if maxTokens <= 0 {
		maxTokens = DefaultContextWindowTokens
	}

	ranked := append([]vectordb.SearchResult(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		if ranked[i].Entry.Payload.DocumentID != ranked[j].Entry.Payload.DocumentID {
			return ranked[i].Entry.Payload.DocumentID < ranked[j].Entry.Payload.DocumentID
		}
		return ranked[i].Entry.Payload.ChunkIndex < ranked[j].Entry.Payload.ChunkIndex
	})

	out := AssembledContext{TotalTokens: reservedTokens}
	for _, cand := range ranked {
		tokens := cand.Entry.Payload.TokenCount
		if tokens <= 0 {
			tokens = estimateTokens(cand.Entry.Text)
		}
		if out.TotalTokens+tokens > maxTokens {
			break
		}
		out.Chunks = append(out.Chunks, cand)
		out.TotalTokens += tokens
	}

	// Even the top candidate is over budget: hand it through alone and let
	// the prompt builder truncate it, rather than answering with nothing.
	if len(out.Chunks) == 0 && len(ranked) > 0 {
		out.Chunks = ranked[:1]
		out.TotalTokens = reservedTokens + ranked[0].Entry.Payload.TokenCount
		out.Oversized = true
	}
	return out
}
