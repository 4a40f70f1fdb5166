package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ziadkadry99/docchat/internal/config"
	"github.com/ziadkadry99/docchat/internal/embeddings"
	"github.com/ziadkadry99/docchat/internal/llm"
	"github.com/ziadkadry99/docchat/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `docchat init` to create a config file", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig builds the full embedding gateway: the provider
// client wrapped in retry-with-backoff and the content-addressed cache.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	var base embeddings.Embedder
	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		base = embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel))
	case config.ProviderOllama:
		base = embeddings.NewOllamaEmbedder(cfg.EmbeddingModel, 768, cfg.OllamaURL)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}

	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	return embeddings.NewCachingEmbedder(embeddings.NewRetryingEmbedder(base), ttl), nil
}

// createLLMProviderFromConfig creates the completion provider, throttled to
// the configured requests-per-minute budget.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	var provider llm.Provider
	switch cfg.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required")
		}
		provider = llm.NewOpenAIProvider(apiKey, cfg.Model)
	case config.ProviderOllama:
		// Ollama speaks the OpenAI-compatible API under /v1.
		provider = llm.NewOpenAIProviderWithBaseURL("ollama", cfg.Model, cfg.OllamaURL+"/v1")
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	if cfg.ProviderRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.ProviderRPM)
	}
	return provider, nil
}

// openVectorIndex creates the index and loads any persisted state from the
// data directory. A missing snapshot is not an error; the index starts empty.
func openVectorIndex(cfg *config.Config, embedder embeddings.Embedder) (vectordb.VectorIndex, error) {
	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating vector index: %w", err)
	}
	if err := index.Load(context.Background(), cfg.DataDir); err != nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "no persisted index in %s (%v); starting empty\n", cfg.DataDir, err)
		}
	}
	return index, nil
}
