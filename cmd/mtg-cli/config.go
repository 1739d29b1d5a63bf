package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/topherhaynie/mtg-card-app-sub001/internal/core"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/embedding"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/llm"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/retrieval"
	"github.com/topherhaynie/mtg-card-app-sub001/internal/storage"
)

// Config holds CLI configuration loaded from environment, flags, and an
// optional config file.
type Config struct {
	DBPath       string
	EmbedBackend string // "local" or "openai"
	OllamaURL    string
	OllamaModel  string
	OpenAIAPIKey string
	GeminiAPIKey string
	GeminiModel  string
	RedisAddr    string
	ListenAddr   string
	LogLevel     string
}

// LoadConfig reads configuration with viper: MTG_-prefixed environment
// variables override file values, which override defaults.
func LoadConfig(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MTG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("embed_backend", "local")
	v.SetDefault("ollama_url", "http://localhost:11434/api/embed")
	v.SetDefault("ollama_model", "nomic-embed-text")
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".mtg-card-app"))
		}
		// A missing default config file is fine.
		_ = v.ReadInConfig()
	}

	return &Config{
		DBPath:       v.GetString("db_path"),
		EmbedBackend: v.GetString("embed_backend"),
		OllamaURL:    v.GetString("ollama_url"),
		OllamaModel:  v.GetString("ollama_model"),
		OpenAIAPIKey: v.GetString("openai_api_key"),
		GeminiAPIKey: v.GetString("gemini_api_key"),
		GeminiModel:  v.GetString("gemini_model"),
		RedisAddr:    v.GetString("redis_addr"),
		ListenAddr:   v.GetString("listen_addr"),
		LogLevel:     v.GetString("log_level"),
	}, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mtg-card-app/catalog.db"
	}
	return filepath.Join(home, ".mtg-card-app", "catalog.db")
}

// NewLogger builds the process logger for the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.LogLevel == "debug" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err == nil {
		zc.Level = level
	}
	return zc.Build()
}

// App bundles the wired engine with its owned resources.
type App struct {
	Engine  *core.Engine
	Catalog *storage.CatalogStore
	Vectors *storage.VectorStore
	Embed   retrieval.Embedder
	Logger  *zap.Logger

	gemini *llm.GeminiClient
}

// Close releases app resources.
func (a *App) Close() {
	if a.gemini != nil {
		a.gemini.Close()
	}
	if a.Catalog != nil {
		a.Catalog.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// BuildApp wires storage, embedding, retrieval, the LLM caller, and the
// engine from configuration. This is the one place the per-process caches
// (inside the engine) are constructed.
func BuildApp(ctx context.Context, cfg *Config) (*App, error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	catalog, err := storage.NewCatalogStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	vectors, err := storage.NewVectorStore(catalog.DB())
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	var embedder retrieval.Embedder
	switch cfg.EmbedBackend {
	case "openai":
		embedder = embedding.NewOpenAIClient(cfg.OpenAIAPIKey)
	default:
		embedder = embedding.NewLocalClient(
			embedding.WithLocalBaseURL(cfg.OllamaURL),
			embedding.WithLocalModel(cfg.OllamaModel),
		)
	}

	retriever := retrieval.NewHybridRetriever(embedder, vectors, catalog, catalog, logger)

	app := &App{
		Catalog: catalog,
		Vectors: vectors,
		Embed:   embedder,
		Logger:  logger,
	}

	var generator core.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		app.gemini = gemini
		generator = llm.NewCaller(gemini, llm.WithLogger(logger))
	} else {
		logger.Warn("no gemini api key configured; narrative and constraint extraction disabled")
	}

	app.Engine = core.NewEngine(core.Deps{
		Config:    core.DefaultConfig(),
		Retriever: retriever,
		Catalog:   catalog,
		Generator: generator,
		Logger:    logger,
	})
	return app, nil
}
