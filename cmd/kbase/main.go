package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kbase/internal/classifier"
	"kbase/internal/config"
	"kbase/internal/domain"
	"kbase/internal/extractor"
	"kbase/internal/genai"
	"kbase/internal/kb"
	"kbase/internal/logger"
	"kbase/internal/memory"
	"kbase/internal/parser"
	"kbase/internal/service"
	"kbase/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/kbase/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog := logger.New(cfg.Logging.File, cfg.Logging.Prod)
	defer func() { _ = zlog.Sync() }()

	if err := os.MkdirAll(cfg.Storage.InputDir, 0o755); err != nil {
		zlog.Fatal("failed to create input directory", zap.Error(err))
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.KnowledgeBase), 0o755); err != nil {
		zlog.Fatal("failed to create output directory", zap.Error(err))
	}

	// Assemble components
	var gen domain.Generator
	switch cfg.Generator.Type {
	case "mock", "":
		gen = genai.NewMock()
	case "ollama":
		ocfg := genai.OllamaConfig{}
		if cfg.Generator.Ollama != nil {
			ocfg = genai.OllamaConfig{
				BaseURL: cfg.Generator.Ollama.BaseURL,
				Model:   cfg.Generator.Ollama.Model,
				Timeout: time.Duration(cfg.Generator.Ollama.TimeoutSecs) * time.Second,
			}
		}
		gen = genai.NewOllamaClient(ocfg)
	case "openai":
		if cfg.Generator.OpenAI == nil {
			zlog.Fatal("openai generator config missing")
		}
		client, err := genai.NewOpenAIClient(genai.OpenAIConfig{
			BaseURL:   cfg.Generator.OpenAI.BaseURL,
			APIKeyEnv: cfg.Generator.OpenAI.APIKeyEnv,
			Model:     cfg.Generator.OpenAI.Model,
			MaxTokens: cfg.Generator.OpenAI.MaxTokens,
			Timeout:   time.Duration(cfg.Generator.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			zlog.Warn("openai generator init failed, falling back to mock", zap.Error(err))
			gen = genai.NewMock()
		} else {
			gen = client
		}
	default:
		zlog.Fatal("unknown generator type", zap.String("type", cfg.Generator.Type))
	}
	zlog.Info("generation backend selected", zap.String("backend", gen.Name()))

	store, err := memory.Load(cfg.Storage.Memory)
	if err != nil {
		zlog.Fatal("failed to load memory store", zap.Error(err))
	}
	base, err := kb.Load(cfg.Storage.KnowledgeBase, store.Preferences())
	if err != nil {
		zlog.Fatal("failed to load knowledge base", zap.Error(err))
	}

	svc := service.New(
		parser.New(),
		classifier.New(gen, store, zlog),
		extractor.New(gen, zlog),
		store,
		base,
		zlog,
	)

	added, err := svc.ProcessDocuments(cfg.Storage.InputDir)
	if err != nil {
		zlog.Fatal("ingestion failed", zap.Error(err))
	}
	zlog.Info("ingestion finished",
		zap.Int("new_documents", added),
		zap.Int("total_documents", len(svc.Documents())))

	status := fmt.Sprintf("Ingested %d new document(s), %d total. Pick an option.", added, len(svc.Documents()))
	m := tui.New(svc, status)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		zlog.Fatal("tui failed", zap.Error(err))
	}
}
