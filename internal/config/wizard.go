package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// contentDirCandidates are checked in order when guessing where the corpus
// lives.
var contentDirCandidates = []string{"content", "docs", "documentation", "book"}

func detectContentDir() string {
	for _, dir := range contentDirCandidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return "content"
}

// RunWizard runs an interactive configuration wizard and saves the resulting
// config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to docchat! Let's configure your corpus.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Completion provider.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	defaultModel := "gpt-4o-mini"
	if cfg.Provider == ProviderOllama {
		defaultModel = "llama3.1"
	}
	modelPrompt := promptui.Prompt{
		Label:   "Completion model",
		Default: defaultModel,
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model selection: %w", err)
	}

	// 2. Embedding provider follows the completion provider unless the
	// user picks otherwise.
	embedPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{"openai", "ollama"},
	}
	_, embedStr, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding provider selection: %w", err)
	}
	cfg.EmbeddingProvider = ProviderType(embedStr)
	if cfg.EmbeddingProvider == ProviderOllama {
		cfg.EmbeddingModel = "nomic-embed-text"
	}

	// 3. Corpus location.
	contentPrompt := promptui.Prompt{
		Label:   "Content directory (markdown corpus)",
		Default: detectContentDir(),
	}
	if cfg.ContentDir, err = contentPrompt.Run(); err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:   "Server port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration written to %s\n", path)
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" {
		fmt.Printf("Remember to export %s before running `docchat ingest`.\n", envVar)
	}
	return cfg, nil
}
