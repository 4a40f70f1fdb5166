package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docchat/internal/admission"
	"github.com/ziadkadry99/docchat/internal/chat"
	"github.com/ziadkadry99/docchat/internal/chunker"
	"github.com/ziadkadry99/docchat/internal/corpus"
	"github.com/ziadkadry99/docchat/internal/db"
	"github.com/ziadkadry99/docchat/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server for chat and ingestion",
	Long: `Starts the docchat HTTP server: SSE and WebSocket chat endpoints,
ingestion triggers, and a health check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
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
		pipeline := corpus.NewPipeline(docs, index, embedder, chunker.Options{
			TargetTokens:  cfg.Chunking.TargetTokens,
			OverlapTokens: cfg.Chunking.OverlapTokens,
		}, cfg.DataDir)
		tasks := corpus.NewTaskTracker()

		sessions := chat.NewSessionStore(
			time.Duration(cfg.Session.TTLMinutes)*time.Minute,
			cfg.Session.MaxMessages,
		)
		streamer := chat.NewStreamer(provider, cfg.Model, 1024)
		engine := chat.NewEngine(embedder, index, sessions, streamer, cfg.Retrieval.TopK)

		ctrl := admission.NewController(
			admission.Limits{PerMinute: cfg.RateLimit.AnonymousPerMinute, Burst: cfg.RateLimit.AnonymousBurst},
			admission.Limits{PerMinute: cfg.RateLimit.KeyedPerMinute, Burst: cfg.RateLimit.KeyedBurst},
		)

		srv := server.New(server.Config{
			Port:           cfg.Server.Port,
			AllowAll:       cfg.Server.AllowAll,
			RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second,
		}, engine, ctrl, pipeline, tasks, docs, index, func() bool {
			// The provider is reachable as long as credentials are set;
			// actual failures surface per-request with retries.
			return cfg.EmbeddingProvider == "" || os.Getenv("OPENAI_API_KEY") != "" || cfg.EmbeddingProvider == "ollama"
		})

		// Graceful shutdown on SIGINT/SIGTERM.
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "received %s, shutting down\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
