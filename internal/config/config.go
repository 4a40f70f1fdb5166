package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// knownKeys is the set of recognized top-level configuration keys. Unknown
// keys in the YAML file are rejected at load so that typos surface at startup
// instead of being silently ignored.
var knownKeys = map[string]bool{
	"provider":           true,
	"model":              true,
	"embedding_provider": true,
	"embedding_model":    true,
	"content_dir":        true,
	"data_dir":           true,
	"ollama_url":         true,
	"provider_rpm":       true,
	"server":             true,
	"chunking":           true,
	"retrieval":          true,
	"session":            true,
	"rate_limit":         true,
	"cache":              true,
}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DOCCHAT_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		for key := range k.Raw() {
			if !knownKeys[key] {
				return nil, fmt.Errorf("unknown config key %q in %s", key, path)
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: DOCCHAT_PROVIDER -> provider, etc.
	if err := k.Load(env.Provider("DOCCHAT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "DOCCHAT_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}
	if c.ContentDir == "" {
		return fmt.Errorf("content_dir is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Chunking.TargetTokens <= 0 {
		return fmt.Errorf("chunking.target_tokens must be positive")
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.TargetTokens {
		return fmt.Errorf("chunking.overlap_tokens must be >= 0 and < target_tokens")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.Retrieval.ContextWindowTokens <= 0 {
		return fmt.Errorf("retrieval.context_window_tokens must be positive")
	}
	if c.Session.MaxMessages <= 0 {
		return fmt.Errorf("session.max_messages must be positive")
	}
	if c.RateLimit.AnonymousPerMinute <= 0 || c.RateLimit.KeyedPerMinute <= 0 {
		return fmt.Errorf("rate_limit per-minute values must be positive")
	}
	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
