package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docchat/internal/chunker"
	"github.com/ziadkadry99/docchat/internal/corpus"
	"github.com/ziadkadry99/docchat/internal/db"
	"github.com/ziadkadry99/docchat/internal/progress"
)

var (
	ingestForce     bool
	ingestBatchSize int
	ingestInclude   []string
	ingestExclude   []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Chunk, embed, and index the markdown corpus",
	Long: `Walks the content directory, chunks each markdown document, embeds the
chunks, and upserts them into the vector index. Unchanged documents
(same content hash) are skipped unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		contentPath := cfg.ContentDir
		if len(args) > 0 {
			contentPath = args[0]
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

		docs := corpus.NewStore(database)
		pipeline := corpus.NewPipeline(docs, index, embedder, chunker.Options{
			TargetTokens:  cfg.Chunking.TargetTokens,
			OverlapTokens: cfg.Chunking.OverlapTokens,
		}, cfg.DataDir)

		reporter := progress.NewReporter()
		started := false

		result, err := pipeline.Run(context.Background(), corpus.Options{
			ContentPath:  contentPath,
			ForceReindex: ingestForce,
			BatchSize:    ingestBatchSize,
			Include:      ingestInclude,
			Exclude:      ingestExclude,
			OnProgress: func(processed, total int, relPath string) {
				if !started {
					reporter.Start(total)
					started = true
				}
				reporter.Update(processed, relPath)
			},
		})
		reporter.Finish()
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d of %d documents in %s (%d skipped, %d failed, %d chunks indexed)\n",
			result.Processed, result.DocumentsTotal, result.Duration.Round(10*time.Millisecond),
			result.Skipped, result.Failed, result.ChunksIndexed)
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d document(s) failed", result.Failed)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-chunk and re-embed even if content is unchanged")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "chunks per embedding call (default 32)")
	ingestCmd.Flags().StringSliceVar(&ingestInclude, "include", nil, "glob patterns to include")
	ingestCmd.Flags().StringSliceVar(&ingestExclude, "exclude", nil, "glob patterns to exclude")
	rootCmd.AddCommand(ingestCmd)
}
