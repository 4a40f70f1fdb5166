package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docchat/internal/chat"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// handleSearchCorpus performs semantic search over the corpus.
func (s *Server) handleSearchCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	chapter := request.GetString("chapter", "")

	results, err := s.engine.Search(ctx, query, chapter, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if len(results) == 0 {
		return mcp.NewToolResultText("No results found. The corpus may not be ingested yet. Run `docchat ingest` to index it."), nil
	}

	return mcp.NewToolResultText(formatSearchResults(results)), nil
}

// handleAskCorpus runs the full question-answering pipeline and returns the
// answer with its citations.
func (s *Server) handleAskCorpus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	sessionID := request.GetString("session_id", "")

	answer, citations, err := s.engine.Answer(ctx, chat.ChatRequest{Question: question, SessionID: sessionID})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("question failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(answer)
	if len(citations) > 0 {
		sb.WriteString("\n\nSources:\n")
		for i, c := range citations {
			loc := c.Source.Chapter
			if c.Source.Section != "" {
				loc += " > " + c.Source.Section
			}
			if loc == "" {
				loc = c.Source.FilePath
			}
			sb.WriteString(fmt.Sprintf("%d. %s (%.0f%% match)\n", i+1, loc, c.Score*100))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListDocuments lists the document registry.
func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("No documents ingested yet. Run `docchat ingest` to index the corpus."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d document(s):\n", len(docs)))
	for _, d := range docs {
		sb.WriteString(fmt.Sprintf("\n- %s", d.RelPath))
		if d.Chapter != "" {
			sb.WriteString(fmt.Sprintf(" [%s]", d.Chapter))
		}
		sb.WriteString(fmt.Sprintf(" — %s, %d chunks", d.Status, d.ChunkCount))
		if d.Error != "" {
			sb.WriteString(fmt.Sprintf(" (error: %s)", d.Error))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatSearchResults converts search results into a text format optimized
// for AI agent consumption.
func formatSearchResults(results []vectordb.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n", len(results)))

	for i, r := range results {
		sb.WriteString(fmt.Sprintf("\n--- Result %d ---\n", i+1))

		p := r.Entry.Payload
		if p.FilePath != "" {
			sb.WriteString(fmt.Sprintf("File: %s\n", p.FilePath))
		}
		if p.Chapter != "" {
			sb.WriteString(fmt.Sprintf("Chapter: %s\n", p.Chapter))
		}
		if p.Section != "" && p.Section != p.Chapter {
			sb.WriteString(fmt.Sprintf("Section: %s\n", p.Section))
		}
		if p.HeadingText != "" {
			sb.WriteString(fmt.Sprintf("Heading: %s\n", p.HeadingText))
		}
		sb.WriteString(fmt.Sprintf("Similarity: %.1f%%\n", r.Similarity*100))

		sb.WriteString("\n")
		sb.WriteString(r.Entry.Text)
		sb.WriteString("\n")
	}

	return sb.String()
}
