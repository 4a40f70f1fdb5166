package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docchat/internal/chat"
	"github.com/ziadkadry99/docchat/internal/corpus"
	"github.com/ziadkadry99/docchat/internal/db"
	mcpserver "github.com/ziadkadry99/docchat/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing corpus search and question answering as tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.Open(filepath.Join(cfg.DataDir, "docchat.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return err
		}
		index, err := openVectorIndex(cfg, embedder)
		if err != nil {
			return err
		}
		provider, err := createLLMProviderFromConfig(cfg)
		if err != nil {
			return err
		}

		docs := corpus.NewStore(database)
		sessions := chat.NewSessionStore(
			time.Duration(cfg.Session.TTLMinutes)*time.Minute,
			cfg.Session.MaxMessages,
		)
		streamer := chat.NewStreamer(provider, cfg.Model, 1024)
		engine := chat.NewEngine(embedder, index, sessions, streamer, cfg.Retrieval.TopK)

		mcpserver.Version = Version

		// Stdout carries MCP protocol traffic; keep human output on stderr.
		fmt.Fprintf(os.Stderr, "docchat MCP server started on stdio (chunks=%d)\n", index.Count())

		srv := mcpserver.NewServer(engine, docs)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
