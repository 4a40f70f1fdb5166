package chat

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

const answerSystemPrompt = `You are a documentation assistant answering questions about a document corpus. Answer using ONLY the numbered context excerpts provided. When a statement comes from an excerpt, cite it inline with its bracketed number, e.g. [1] or [2]. If the context does not contain the answer, say so plainly rather than guessing. Keep answers concise and factual.`

const contextHeader = "Context excerpts from the corpus:\n\n"

// buildPrompt assembles the full message list for the completion call:
// system instructions, numbered context, up to the retained prior turns, and
// the current question. When assembled.Oversized is set, the single chunk's
// text is cut to the budget here as the explicit last-resort path.
func buildPrompt(question string, history []Message, assembled AssembledContext, maxTokens int) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: answerSystemPrompt}}

	if len(assembled.Chunks) > 0 {
		var sb strings.Builder
		sb.WriteString(contextHeader)
		for i, chunk := range assembled.Chunks {
			text := chunk.Entry.Text
			if assembled.Oversized {
				text = truncateToTokens(text, maxTokens)
			}
			sb.WriteString(formatExcerpt(i+1, chunk, text))
			sb.WriteString("\n\n")
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: strings.TrimRight(sb.String(), "\n")})
	}

	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: turn.Content})
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	return msgs
}

func formatExcerpt(n int, chunk vectordb.SearchResult, text string) string {
	p := chunk.Entry.Payload
	var loc []string
	if p.Chapter != "" {
		loc = append(loc, p.Chapter)
	}
	if p.Section != "" && p.Section != p.Chapter {
		loc = append(loc, p.Section)
	}
	if p.HeadingText != "" && (len(loc) == 0 || p.HeadingText != loc[len(loc)-1]) {
		loc = append(loc, p.HeadingText)
	}
	label := strings.Join(loc, " > ")
	if label == "" {
		label = p.FilePath
	}
	return fmt.Sprintf("[%d] %s\n%s", n, label, text)
}

// truncateToTokens cuts text to roughly maxTokens, at a word boundary when
// one is close by.
func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	maxBytes := maxTokens * 4
	if len(text) <= maxBytes {
		return text
	}
	cut := text[:maxBytes]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxBytes/2 {
		cut = cut[:idx]
	}
	return cut
}
