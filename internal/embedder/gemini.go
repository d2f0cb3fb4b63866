package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// defaultGeminiTaskType optimises vectors for documents stored for search.
const defaultGeminiTaskType = "RETRIEVAL_DOCUMENT"

// GeminiConfig holds the settings for constructing a GeminiEmbedder.
type GeminiConfig struct {
	// APIKey is the Google AI Studio key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-004").
	Model string
	// Dimensions requests a reduced output size (0 = model default).
	Dimensions int
	// TaskType is passed to the API (default RETRIEVAL_DOCUMENT).
	TaskType string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// GeminiEmbedder implements rag.Embedder with the Gemini embedding API.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	taskType   string
}

// NewGeminiEmbedder creates the genai client. Dimensions must already be
// within [MinGeminiDimensions, MaxGeminiDimensions] or zero.
func NewGeminiEmbedder(ctx context.Context, cfg *GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.Dimensions != 0 && (cfg.Dimensions < MinGeminiDimensions || cfg.Dimensions > MaxGeminiDimensions) {
		return nil, &DimensionError{Provider: "gemini", Dimensions: cfg.Dimensions, Min: MinGeminiDimensions, Max: MaxGeminiDimensions}
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: create client: %w", err)
	}

	taskType := cfg.TaskType
	if taskType == "" {
		taskType = defaultGeminiTaskType
	}
	return &GeminiEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		taskType:   taskType,
	}, nil
}

// Embed converts a batch of texts into their corresponding embeddings.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	embedCfg := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		embedCfg.OutputDimensionality = &dims
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: request failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedder: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
