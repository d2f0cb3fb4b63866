package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/54b3r/raglab-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultGeminiDimensions is the output dimension of text-embedding-004.
	defaultGeminiDimensions = 768

	// MinGeminiDimensions and MaxGeminiDimensions bound the output
	// dimensionality accepted by the Gemini embedding API.
	MinGeminiDimensions = 128
	MaxGeminiDimensions = 3072

	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 100

	defaultTimeout = 60 * time.Second
)

// Config holds embedding provider settings. Empty credentials are filled
// from the chat model configuration by the config package.
type Config struct {
	// Provider selects the embedding backend: ollama, openai, azure, gemini.
	Provider string `yaml:"provider" toml:"provider"`
	// Model is the embedding model name. Empty selects the backend default.
	Model string `yaml:"model" toml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions" toml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version" toml:"api_version"`
	// KeepAlive is how long Ollama keeps the model loaded, e.g. "10m".
	KeepAlive string `yaml:"keep_alive" toml:"keep_alive"`
	// TaskType is the Gemini embedding task type.
	TaskType string `yaml:"task_type" toml:"task_type"`
	// BatchSize caps the number of texts per request.
	BatchSize int `yaml:"batch_size" toml:"batch_size"`
	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// DimensionError reports an embedding size outside what the backend accepts.
type DimensionError struct {
	Provider   string
	Dimensions int
	Min, Max   int
}

// Error implements error.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedder: %s dimensions=%d outside supported range [%d, %d]", e.Provider, e.Dimensions, e.Min, e.Max)
}

// Validate checks backend selection, credentials and dimension bounds.
func (c Config) Validate() error {
	if c.Dimensions < 0 {
		return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must not be negative, got %d", c.Dimensions)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("embedder: batch_size must not be negative, got %d", c.BatchSize)
	}

	switch c.Provider {
	case "ollama":
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "gemini":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		if c.Dimensions != 0 && (c.Dimensions < MinGeminiDimensions || c.Dimensions > MaxGeminiDimensions) {
			return &DimensionError{Provider: c.Provider, Dimensions: c.Dimensions, Min: MinGeminiDimensions, Max: MaxGeminiDimensions}
		}
	case "bedrock":
		return fmt.Errorf("embedder: bedrock embedding is not implemented, set EMBEDDING_PROVIDER to ollama, openai, azure or gemini")
	default:
		return fmt.Errorf("embedder: unknown backend %q, valid values: ollama, openai, azure, gemini", c.Provider)
	}
	return nil
}

// VectorSize returns the embedding dimension for the configuration.
// Callers that need to pre-configure a vector store (e.g. collection
// creation) should use this rather than hardcoding a value.
func (c Config) VectorSize() int {
	if c.Dimensions > 0 {
		return c.Dimensions
	}
	switch c.Provider {
	case "ollama":
		return defaultOllamaDimensions
	case "gemini":
		return defaultGeminiDimensions
	default:
		return defaultOpenAIDimensions
	}
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) modelOr(fallback string) string {
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

// New validates cfg and constructs the matching rag.Embedder, wrapped so
// that large inputs are sent in batches of cfg.BatchSize.
func New(ctx context.Context, cfg Config) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var inner rag.Embedder
	switch cfg.Provider {
	case "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		inner = NewOllamaEmbedder(&OllamaConfig{
			Host:      host,
			Model:     cfg.modelOr(defaultOllamaModel),
			KeepAlive: cfg.KeepAlive,
			Timeout:   cfg.timeout(),
		})

	case "openai":
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.modelOr(defaultOpenAIModel),
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.timeout(),
		})

	case "azure":
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.modelOr(defaultOpenAIModel),
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: apiVersion,
			Timeout:    cfg.timeout(),
		})

	case "gemini":
		g, err := NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.modelOr(defaultGeminiModel),
			Dimensions: cfg.Dimensions,
			TaskType:   cfg.TaskType,
			BaseURL:    cfg.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		inner = g
	}

	return NewBatched(inner, cfg.BatchSize), nil
}
