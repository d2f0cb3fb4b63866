package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/raglab-go/internal/rag"
)

// Batched splits large inputs into fixed-size requests to the wrapped
// embedder and concatenates the results in order.
type Batched struct {
	inner rag.Embedder
	size  int
}

// NewBatched wraps e. A size <= 0 uses DefaultBatchSize.
func NewBatched(e rag.Embedder, size int) *Batched {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batched{inner: e, size: size}
}

// Embed implements rag.Embedder.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		vecs, err := b.inner.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedder: batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder: batch %d-%d: expected %d embeddings, got %d", start, end, end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
