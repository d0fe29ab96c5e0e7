// Package config loads the planner configuration.
//
// Values come from, lowest precedence first: built-in defaults, an optional
// YAML file, GROQ_API_KEY, and PLANNER_* environment variables. A .env file
// in the working directory is loaded into the environment first when it
// exists.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leofalp/planner/providers/observability/slogobs"
)

// Config is the complete planner configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	LLM       LLMConfig       `koanf:"llm"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig configures the web boundary.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	PlanTimeout     time.Duration `koanf:"plan_timeout"`
}

// MetricsConfig configures the Prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// LLMConfig configures the OpenAI-compatible model endpoint.
type LLMConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	MaxRetries  int           `koanf:"max_retries"`
	Timeout     time.Duration `koanf:"timeout"`
	NodeTimeout time.Duration `koanf:"node_timeout"`
}

// KnowledgeConfig configures the knowledge base builder and search.
type KnowledgeConfig struct {
	TesseractPath  string `koanf:"tesseract_path"`
	PdftoppmPath   string `koanf:"pdftoppm_path"`
	PDFPath        string `koanf:"pdf_path"`
	StorePath      string `koanf:"store_path"`
	Collection     string `koanf:"collection"`
	EmbeddingModel string `koanf:"embedding_model"`
	CacheDir       string `koanf:"cache_dir"`
	Language       string `koanf:"language"`
	ChunkSize      int    `koanf:"chunk_size"`
	ChunkOverlap   int    `koanf:"chunk_overlap"`
	DPI            int    `koanf:"dpi"`
}

// LogConfig configures slogobs.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			PlanTimeout:     90 * time.Second,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama3-70b-8192",
			Temperature: 0.1,
			MaxTokens:   2048,
			MaxRetries:  2,
			Timeout:     60 * time.Second,
			NodeTimeout: 75 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			TesseractPath:  "tesseract",
			PdftoppmPath:   "pdftoppm",
			PDFPath:        "data/thuvienhoclieu.com-SGK-Toan-9-KNTT-tap-1.pdf",
			StorePath:      "vector_store/sgk_toan_9",
			Collection:     "sgk_toan_9",
			EmbeddingModel: "sentence-transformers/all-MiniLM-L6-v2",
			CacheDir:       "local_cache",
			Language:       "vie",
			ChunkSize:      1000,
			ChunkOverlap:   100,
			DPI:            300,
		},
		Log: LogConfig{
			Level:  "info",
			Format: string(slogobs.FormatCompact),
		},
	}
}

// Validate reports every invalid setting. The API key is not checked here:
// only the commands that call the model need it, see LLMConfig.RequireAPIKey.
func (cfg Config) Validate() error {
	var problems []error

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		problems = append(problems, errors.New("server.addr must not be empty"))
	}
	if cfg.Metrics.Addr != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		problems = append(problems, fmt.Errorf("metrics.path %q must start with /", cfg.Metrics.Path))
	}

	if strings.TrimSpace(cfg.LLM.BaseURL) == "" {
		problems = append(problems, errors.New("llm.base_url must not be empty"))
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		problems = append(problems, errors.New("llm.model must not be empty"))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		problems = append(problems, fmt.Errorf("llm.temperature %v must be within 0..2", cfg.LLM.Temperature))
	}
	if cfg.LLM.MaxTokens <= 0 {
		problems = append(problems, fmt.Errorf("llm.max_tokens %d must be positive", cfg.LLM.MaxTokens))
	}
	if cfg.LLM.MaxRetries < 0 {
		problems = append(problems, fmt.Errorf("llm.max_retries %d must not be negative", cfg.LLM.MaxRetries))
	}
	if cfg.LLM.Timeout < 0 || cfg.LLM.NodeTimeout < 0 {
		problems = append(problems, errors.New("llm timeouts must not be negative"))
	}

	if cfg.Knowledge.ChunkSize <= 0 {
		problems = append(problems, fmt.Errorf("knowledge.chunk_size %d must be positive", cfg.Knowledge.ChunkSize))
	}
	if cfg.Knowledge.ChunkOverlap < 0 || cfg.Knowledge.ChunkOverlap >= cfg.Knowledge.ChunkSize {
		problems = append(problems, fmt.Errorf("knowledge.chunk_overlap %d must be within 0..chunk_size", cfg.Knowledge.ChunkOverlap))
	}
	if cfg.Knowledge.DPI <= 0 {
		problems = append(problems, fmt.Errorf("knowledge.dpi %d must be positive", cfg.Knowledge.DPI))
	}
	if strings.TrimSpace(cfg.Knowledge.StorePath) == "" {
		problems = append(problems, errors.New("knowledge.store_path must not be empty"))
	}

	if _, err := slogobs.ParseLevel(cfg.Log.Level); err != nil {
		problems = append(problems, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case string(slogobs.FormatCompact), string(slogobs.FormatText), string(slogobs.FormatJSON):
	default:
		problems = append(problems, fmt.Errorf("log.format %q must be compact, text or json", cfg.Log.Format))
	}

	return errors.Join(problems...)
}

// ErrMissingAPIKey is returned by RequireAPIKey.
var ErrMissingAPIKey = errors.New("llm.api_key is not set (export GROQ_API_KEY or PLANNER_LLM_API_KEY)")

// RequireAPIKey fails when no API key is configured.
func (cfg LLMConfig) RequireAPIKey() error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}
