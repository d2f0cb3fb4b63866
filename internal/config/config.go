// Package config resolves the raglab configuration once at startup.
// Values are layered with the precedence defaults → config file → env vars,
// then validated as a whole and handed to every component explicitly. There
// is no package-level configuration state.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGLAB_CONFIG environment variable
//  3. ~/.raglab/config.yaml
//  4. ./raglab.yaml
//  5. ./raglab.toml
//
// Files ending in .toml are decoded as TOML, everything else as YAML. If no
// file is found the defaults and env vars are used.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/54b3r/raglab-go/internal/embedder"
	"github.com/54b3r/raglab-go/internal/ingestion"
	"github.com/54b3r/raglab-go/internal/logging"
	"github.com/54b3r/raglab-go/internal/memory"
	"github.com/54b3r/raglab-go/internal/pipeline"
	"github.com/54b3r/raglab-go/internal/prompt"
	"github.com/54b3r/raglab-go/internal/provider"
	"github.com/54b3r/raglab-go/internal/rag"
	"github.com/54b3r/raglab-go/internal/router"
	"github.com/54b3r/raglab-go/internal/segment"
	"github.com/54b3r/raglab-go/internal/tracing"
)

// Config is the top-level configuration structure. Section names mirror the
// env var groups (lowercase, underscored).
type Config struct {
	// Model configures the chat model used for generation and routing.
	Model provider.Config `yaml:"model" toml:"model"`

	// Embedding configures the embedding provider.
	Embedding embedder.Config `yaml:"embedding" toml:"embedding"`

	// VectorStore selects the vector store backend.
	VectorStore rag.Config `yaml:"vector_store" toml:"vector_store"`

	// Memory configures conversation history.
	Memory memory.Config `yaml:"memory" toml:"memory"`

	// Chunking configures the segmenter used at ingestion.
	Chunking segment.Config `yaml:"chunking" toml:"chunking"`

	// Ingestion configures document fetching.
	Ingestion ingestion.Config `yaml:"ingestion" toml:"ingestion"`

	// Prompt configures the response language and format.
	Prompt prompt.Template `yaml:"prompt" toml:"prompt"`

	// Pipeline configures the orchestrator.
	Pipeline pipeline.Config `yaml:"pipeline" toml:"pipeline"`

	// Router configures the dataset catalog for agentic routing.
	Router router.Config `yaml:"router" toml:"router"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Logging configures structured logging.
	Logging logging.Config `yaml:"logging" toml:"logging"`

	// Tracing configures Langfuse tracing.
	Tracing tracing.Config `yaml:"tracing" toml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host" toml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port" toml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGLAB_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// RateLimit is the sustained per-IP request rate on chat endpoints.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	// RateBurst is the per-IP burst on chat endpoints.
	RateBurst int `yaml:"rate_burst" toml:"rate_burst"`
}

// Validate checks the bind address and rate limits.
func (s ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server: RAGLAB_PORT %d is out of range", s.Port)
	}
	if s.RateLimit < 0 || s.RateBurst < 0 {
		return errors.New("server: rate_limit and rate_burst must not be negative")
	}
	return nil
}

// Default returns the configuration used when nothing is set: local Ollama
// for chat and embeddings, local Qdrant, SQLite history.
func Default() Config {
	return Config{
		Model:       provider.DefaultConfig(),
		Embedding:   embedder.Config{BatchSize: embedder.DefaultBatchSize},
		VectorStore: rag.DefaultConfig(),
		Memory:      memory.DefaultConfig(),
		Chunking:    segment.DefaultConfig(),
		Ingestion:   ingestion.DefaultConfig(),
		Prompt:      prompt.DefaultTemplate,
		Pipeline:    pipeline.DefaultConfig(),
		Router:      router.DefaultConfig(),
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8080,
			RateLimit: 10,
			RateBurst: 20,
		},
		Logging: logging.Config{Level: "info", Format: "json"},
	}
}

// Validate runs every section's validation and joins the failures.
func (c *Config) Validate() error {
	return errors.Join(
		c.Model.Validate(),
		c.Embedding.Validate(),
		c.VectorStore.Validate(),
		c.Memory.Validate(),
		c.Chunking.Validate(),
		c.Ingestion.Validate(),
		c.Prompt.Validate(),
		c.Pipeline.Validate(),
		c.Router.Validate(),
		c.Server.Validate(),
		c.Logging.Validate(),
		c.Tracing.Validate(),
	)
}

// Load resolves the configuration: defaults, then the first config file
// found (see package doc), then environment overrides, then derived
// embedding credentials. It returns the validated config and the path of
// the file that was read, empty if none.
func Load(explicitPath string, log *slog.Logger) (*Config, string, error) {
	return load(explicitPath, log, os.LookupEnv)
}

func load(explicitPath string, log *slog.Logger, lookup func(string) (string, bool)) (*Config, string, error) {
	cfg := Default()

	path, err := resolveConfigPath(explicitPath, lookup)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, "", err
		}
	} else {
		log.Debug("config: no config file found, using defaults and env vars")
	}

	applied, err := applyEnv(&cfg, lookup)
	if err != nil {
		return nil, "", err
	}
	inheritEmbedding(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config: invalid configuration: %w", err)
	}

	log.Debug("config: resolved",
		slog.String("path", path),
		slog.Int("env_overrides", applied),
		slog.String("model_provider", string(cfg.Model.Backend)),
		slog.String("vector_store", string(cfg.VectorStore.Backend)),
		slog.String("memory_backend", string(cfg.Memory.Backend)),
	)
	return &cfg, path, nil
}

// decodeFile merges the file at path into cfg.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg); err != nil {
			return fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath returns the first config file path that exists. An
// explicit path that does not exist is an error; the implicit locations are
// optional.
func resolveConfigPath(explicit string, lookup func(string) (string, bool)) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return explicit, nil
	}

	if envPath, _ := lookup("RAGLAB_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	candidates := []string{"raglab.yaml", "raglab.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append([]string{filepath.Join(home, ".raglab", "config.yaml")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// inheritEmbedding fills unset embedding settings from the chat model
// section so a single set of credentials covers both.
func inheritEmbedding(c *Config) {
	e := &c.Embedding
	if e.Provider == "" {
		switch c.Model.Backend {
		case provider.BackendOpenAI, provider.BackendAzure, provider.BackendGemini:
			e.Provider = string(c.Model.Backend)
		default:
			e.Provider = string(provider.BackendOllama)
		}
	}
	switch e.Provider {
	case string(provider.BackendOllama):
		if e.Endpoint == "" {
			e.Endpoint = c.Model.Ollama.Host
		}
	case string(provider.BackendOpenAI):
		if e.APIKey == "" {
			e.APIKey = c.Model.OpenAI.APIKey
		}
	case string(provider.BackendAzure):
		if e.APIKey == "" {
			e.APIKey = c.Model.AzureOpenAI.APIKey
		}
		if e.Endpoint == "" {
			e.Endpoint = c.Model.AzureOpenAI.Endpoint
		}
		if e.APIVersion == "" {
			e.APIVersion = c.Model.AzureOpenAI.APIVersion
		}
	case string(provider.BackendGemini):
		if e.APIKey == "" {
			e.APIKey = c.Model.Gemini.APIKey
		}
	}
}
