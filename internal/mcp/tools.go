package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchCorpusTool defines the search_corpus MCP tool.
var searchCorpusTool = mcp.NewTool("search_corpus",
	mcp.WithDescription("Search the document corpus semantically. Returns the most relevant passages with their chapter, section, and heading."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
	mcp.WithString("chapter",
		mcp.Description("Restrict results to one chapter title"),
	),
)

// askCorpusTool defines the ask_corpus MCP tool.
var askCorpusTool = mcp.NewTool("ask_corpus",
	mcp.WithDescription("Ask a question against the document corpus and get a cited answer."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The question to answer"),
	),
	mcp.WithString("session_id",
		mcp.Description("Session id from a previous call, for multi-turn follow-ups"),
	),
)

// listDocumentsTool defines the list_documents MCP tool.
var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List the ingested documents with their chapter, status, and chunk counts."),
)
