package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OllamaGeneratorConfig holds configuration for the local ollama backend.
type OllamaGeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OpenAIGeneratorConfig holds configuration for an OpenAI-compatible chat
// backend. DeepSeek is reached through the same shape with its base URL.
type OpenAIGeneratorConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects and configures the text-generation backend.
type GeneratorConfig struct {
	Type   string                 `yaml:"type"`
	Ollama *OllamaGeneratorConfig `yaml:"ollama,omitempty"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// StorageConfig holds the on-disk locations of the input directory and the
// two persisted stores.
type StorageConfig struct {
	InputDir      string `yaml:"input_dir"`
	KnowledgeBase string `yaml:"knowledge_base"`
	Memory        string `yaml:"memory"`
}

// LoggingConfig configures the structured log output.
type LoggingConfig struct {
	File string `yaml:"file"`
	Prod bool   `yaml:"prod"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Generator GeneratorConfig `yaml:"generator"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/kbase/config.yaml.
// If neither exists, it writes defaults to ~/.config/kbase/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kbase", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Generator: GeneratorConfig{Type: "mock"},
		Storage: StorageConfig{
			InputDir:      "input_docs",
			KnowledgeBase: filepath.Join("output_kb", "knowledge_base.json"),
			Memory:        "memory.json",
		},
		Logging: LoggingConfig{File: filepath.Join("logs", "kbase.log")},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Storage.InputDir == "" {
		cfg.Storage.InputDir = "input_docs"
	}
	if cfg.Storage.KnowledgeBase == "" {
		cfg.Storage.KnowledgeBase = filepath.Join("output_kb", "knowledge_base.json")
	}
	if cfg.Storage.Memory == "" {
		cfg.Storage.Memory = "memory.json"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join("logs", "kbase.log")
	}
	if cfg.Generator.Type == "ollama" && cfg.Generator.Ollama != nil {
		if cfg.Generator.Ollama.BaseURL == "" {
			cfg.Generator.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Generator.Ollama.Model == "" {
			cfg.Generator.Ollama.Model = "llama3.1"
		}
		if cfg.Generator.Ollama.TimeoutSecs == 0 {
			cfg.Generator.Ollama.TimeoutSecs = 120
		}
	}
	if cfg.Generator.Type == "openai" && cfg.Generator.OpenAI != nil {
		if cfg.Generator.OpenAI.BaseURL == "" {
			cfg.Generator.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Generator.OpenAI.APIKeyEnv == "" {
			cfg.Generator.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Generator.OpenAI.Model == "" {
			cfg.Generator.OpenAI.Model = "gpt-4o-mini"
		}
		if cfg.Generator.OpenAI.MaxTokens == 0 {
			cfg.Generator.OpenAI.MaxTokens = 1000
		}
		if cfg.Generator.OpenAI.TimeoutSecs == 0 {
			cfg.Generator.OpenAI.TimeoutSecs = 30
		}
	}
}
