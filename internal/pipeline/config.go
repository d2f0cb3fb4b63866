package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/54b3r/raglab-go/internal/rag"
)

// FallbackChunks are substituted for retrieved chunks when retrieval comes
// back empty or fails.
var FallbackChunks = []string{
	"RAG (Retrieval-Augmented Generation) é uma técnica que combina recuperação de informação com geração de linguagem natural.",
	"O componente de memória permite que o sistema mantenha contexto conversacional entre interações.",
	"Redis é usado para persistir o histórico de conversas com expiração de 24 horas.",
}

// Config holds orchestrator settings.
type Config struct {
	// Collection is the dataset queried when a request names none.
	Collection string `yaml:"collection" toml:"collection"`
	// TopK is the number of chunks retrieved per query.
	TopK int `yaml:"top_k" toml:"top_k"`
	// TimeoutSeconds bounds one run end to end. Zero disables the deadline.
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds"`
	// MaxPromptTokens is the estimated prompt budget. History is trimmed to
	// fit and a larger prompt is logged. Zero disables the check.
	MaxPromptTokens int `yaml:"max_prompt_tokens" toml:"max_prompt_tokens"`
	// Fallback overrides FallbackChunks when non-empty.
	Fallback []string `yaml:"fallback_chunks" toml:"fallback_chunks"`
}

// DefaultConfig returns the stock orchestrator settings.
func DefaultConfig() Config {
	return Config{
		Collection:      "raglab",
		TopK:            rag.DefaultTopK,
		TimeoutSeconds:  120,
		MaxPromptTokens: 6000,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Collection) == "" {
		errs = append(errs, errors.New("pipeline: RAGLAB_COLLECTION must not be empty"))
	}
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("pipeline: RAGLAB_TOP_K must be positive, got %d", c.TopK))
	}
	if c.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("pipeline: RAGLAB_TIMEOUT_SECONDS must not be negative, got %d", c.TimeoutSeconds))
	}
	if c.MaxPromptTokens < 0 {
		errs = append(errs, fmt.Errorf("pipeline: RAGLAB_MAX_PROMPT_TOKENS must not be negative, got %d", c.MaxPromptTokens))
	}
	return errors.Join(errs...)
}

// Timeout returns the run deadline as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) fallback() []string {
	if len(c.Fallback) > 0 {
		return c.Fallback
	}
	return FallbackChunks
}
