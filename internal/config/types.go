package config

// ProviderType identifies an embedding or completion provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level docchat configuration, corresponding to .docchat.yml.
type Config struct {
	Provider          ProviderType    `yaml:"provider" koanf:"provider"`
	Model             string          `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType    `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string          `yaml:"embedding_model" koanf:"embedding_model"`
	ContentDir        string          `yaml:"content_dir" koanf:"content_dir"`
	DataDir           string          `yaml:"data_dir" koanf:"data_dir"`
	OllamaURL         string          `yaml:"ollama_url" koanf:"ollama_url"`
	ProviderRPM       int             `yaml:"provider_rpm" koanf:"provider_rpm"`
	Server            ServerConfig    `yaml:"server" koanf:"server"`
	Chunking          ChunkingConfig  `yaml:"chunking" koanf:"chunking"`
	Retrieval         RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Session           SessionConfig   `yaml:"session" koanf:"session"`
	RateLimit         RateLimitConfig `yaml:"rate_limit" koanf:"rate_limit"`
	Cache             CacheConfig     `yaml:"cache" koanf:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                  int  `yaml:"port" koanf:"port"`
	AllowAll              bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	RequestTimeoutSeconds int  `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
}

// ChunkingConfig controls how documents are split during ingestion.
type ChunkingConfig struct {
	TargetTokens  int `yaml:"target_tokens" koanf:"target_tokens"`
	OverlapTokens int `yaml:"overlap_tokens" koanf:"overlap_tokens"`
}

// RetrievalConfig controls top-k search and context assembly.
type RetrievalConfig struct {
	TopK                int `yaml:"top_k" koanf:"top_k"`
	ContextWindowTokens int `yaml:"context_window_tokens" koanf:"context_window_tokens"`
}

// SessionConfig controls conversation session behavior.
type SessionConfig struct {
	TTLMinutes  int `yaml:"ttl_minutes" koanf:"ttl_minutes"`
	MaxMessages int `yaml:"max_messages" koanf:"max_messages"`
}

// RateLimitConfig holds per-tier admission limits. The keyed tier is expected
// to be materially higher than the anonymous tier.
type RateLimitConfig struct {
	AnonymousPerMinute int `yaml:"anonymous_per_minute" koanf:"anonymous_per_minute"`
	AnonymousBurst     int `yaml:"anonymous_burst" koanf:"anonymous_burst"`
	KeyedPerMinute     int `yaml:"keyed_per_minute" koanf:"keyed_per_minute"`
	KeyedBurst         int `yaml:"keyed_burst" koanf:"keyed_burst"`
}

// CacheConfig controls the embedding cache.
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours" koanf:"ttl_hours"`
}
