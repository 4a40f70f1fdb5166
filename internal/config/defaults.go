package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		ContentDir:        "content",
		DataDir:           ".docchat",
		OllamaURL:         "http://localhost:11434",
		ProviderRPM:       60,
		Server: ServerConfig{
			Port:                  8080,
			AllowAll:              false,
			RequestTimeoutSeconds: 120,
		},
		Chunking: ChunkingConfig{
			TargetTokens:  500,
			OverlapTokens: 50,
		},
		Retrieval: RetrievalConfig{
			TopK:                10,
			ContextWindowTokens: 3000,
		},
		Session: SessionConfig{
			TTLMinutes:  30,
			MaxMessages: 3,
		},
		RateLimit: RateLimitConfig{
			AnonymousPerMinute: 10,
			AnonymousBurst:     10,
			KeyedPerMinute:     120,
			KeyedBurst:         60,
		},
		Cache: CacheConfig{
			TTLHours: 24,
		},
	}
}
