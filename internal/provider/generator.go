package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/raglab-go/internal/logging"
)

const (
	// DefaultMinResponseChars is the shortest answer accepted before the
	// generator asks the model again.
	DefaultMinResponseChars = 100
	// DefaultMaxAttempts bounds the number of generation attempts per prompt.
	DefaultMaxAttempts = 2
)

// ErrEmptyResponse is returned when every attempt produced no text at all.
var ErrEmptyResponse = errors.New("provider: model returned an empty response")

// Generator sends a composed prompt to a chat model as a single user turn
// and returns the answer text. Answers shorter than MinChars are retried up
// to MaxAttempts times; the last non-empty answer is returned even if it is
// still short.
type Generator struct {
	model       model.BaseChatModel
	minChars    int
	maxAttempts int
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithRetry overrides the short-answer threshold and attempt count.
func WithRetry(minChars, maxAttempts int) GeneratorOption {
	return func(g *Generator) {
		g.minChars = minChars
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
	}
}

// NewGenerator wraps m.
func NewGenerator(m model.BaseChatModel, opts ...GeneratorOption) *Generator {
	g := &Generator{
		model:       m,
		minChars:    DefaultMinResponseChars,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the model's answer to prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	log := logging.FromContext(ctx)
	msgs := []*schema.Message{schema.UserMessage(prompt)}

	var best string
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		out, err := g.model.Generate(ctx, msgs)
		if err != nil {
			return "", fmt.Errorf("provider: generate: %w", err)
		}
		text := strings.TrimSpace(out.Content)
		if len([]rune(text)) >= g.minChars {
			return text, nil
		}
		if text != "" {
			best = text
		}
		log.Warn("provider: model answer shorter than expected",
			slog.Int("attempt", attempt),
			slog.Int("chars", len([]rune(text))),
			slog.Int("min_chars", g.minChars),
		)
	}
	if best == "" {
		return "", ErrEmptyResponse
	}
	return best, nil
}
