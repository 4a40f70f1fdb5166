package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.Chunking.TargetTokens != 500 {
		t.Errorf("expected default target_tokens 500, got %d", cfg.Chunking.TargetTokens)
	}
	if cfg.Chunking.OverlapTokens != 50 {
		t.Errorf("expected default overlap_tokens 50, got %d", cfg.Chunking.OverlapTokens)
	}
	if cfg.Retrieval.ContextWindowTokens != 3000 {
		t.Errorf("expected default context window 3000, got %d", cfg.Retrieval.ContextWindowTokens)
	}
	if cfg.Session.MaxMessages != 3 {
		t.Errorf("expected default max_messages 3, got %d", cfg.Session.MaxMessages)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.docchat.yml")

	original := DefaultConfig()
	original.Model = "gpt-4o"
	original.ContentDir = "book"
	original.Retrieval.TopK = 5
	original.RateLimit.KeyedPerMinute = 240

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.ContentDir != original.ContentDir {
		t.Errorf("content_dir: got %q, want %q", loaded.ContentDir, original.ContentDir)
	}
	if loaded.Retrieval.TopK != original.Retrieval.TopK {
		t.Errorf("top_k: got %d, want %d", loaded.Retrieval.TopK, original.Retrieval.TopK)
	}
	if loaded.RateLimit.KeyedPerMinute != original.RateLimit.KeyedPerMinute {
		t.Errorf("keyed_per_minute: got %d, want %d", loaded.RateLimit.KeyedPerMinute, original.RateLimit.KeyedPerMinute)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.docchat.yml")
	if err := os.WriteFile(path, []byte("provider: openai\nmodle: gpt-4o\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown config key, got nil")
	}
	if !strings.Contains(err.Error(), "modle") {
		t.Errorf("error should name the unknown key, got: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load of missing file should fall back to defaults, got: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestValidateRejectsBadOverlap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chunking.OverlapTokens = cfg.Chunking.TargetTokens
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error when overlap >= target")
	}
}
