package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/docchat/internal/chat"
	"github.com/ziadkadry99/docchat/internal/corpus"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes corpus search and question
// answering as tools for AI agents.
type Server struct {
	engine *chat.Engine
	docs   *corpus.Store
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(engine *chat.Engine, docs *corpus.Store) *Server {
	s := &Server{
		engine: engine,
		docs:   docs,
	}

	s.mcp = server.NewMCPServer(
		"docchat",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchCorpusTool, s.handleSearchCorpus)
	s.mcp.AddTool(askCorpusTool, s.handleAskCorpus)
	s.mcp.AddTool(listDocumentsTool, s.handleListDocuments)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
