package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks the environment variables mapped onto the config.
	EnvPrefix = "PLANNER_"

	// EnvGroqAPIKey is the conventional Groq key variable, mapped to llm.api_key.
	EnvGroqAPIKey = "GROQ_API_KEY" // #nosec G101 -- environment variable name, not a credential

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. PLANNER_* environment variables (PLANNER_LLM_MODEL -> llm.model)
//  2. GROQ_API_KEY for llm.api_key
//  3. The YAML file at path, when path is not empty
//  4. Default()
//
// A .env file in the working directory is loaded into the process
// environment first; variables already set are not overridden.
//
// Example:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("GROQ_", ".", func(key string) string {
		if key == EnvGroqAPIKey {
			return "llm.api_key"
		}
		return ""
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", EnvGroqAPIKey, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", EnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// EnvKey maps an environment variable to a config key. The section is the
// first word after the prefix; the rest, underscores kept, is the field.
//
//	PLANNER_LLM_MODEL               -> llm.model
//	PLANNER_SERVER_READ_TIMEOUT     -> server.read_timeout
//	PLANNER_KNOWLEDGE_CHUNK_OVERLAP -> knowledge.chunk_overlap
func EnvKey(variable string) string {
	lower := strings.ToLower(strings.TrimPrefix(variable, EnvPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found || section == "" || field == "" {
		return ""
	}
	return section + "." + field
}

// readConfigFile reads path with a size limit.
func readConfigFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
