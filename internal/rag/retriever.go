package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/raglab-go/internal/logging"
)

// DefaultTopK is the result count used when the caller passes zero.
const DefaultTopK = 5

// DefaultRetriever implements Retriever by combining an Embedder and a set
// of Collections. It embeds the query at retrieval time and delegates
// similarity search to the collection's store.
type DefaultRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// collections resolves collection names to stores.
	collections Collections

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a DefaultRetriever.
// defaultTopK sets the fallback result count when Retrieve is called with topK=0.
func NewRetriever(embedder Embedder, collections Collections, defaultTopK int) (*DefaultRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if collections == nil {
		return nil, fmt.Errorf("rag: collections must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &DefaultRetriever{
		embedder:    embedder,
		collections: collections,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns the top-k most relevant documents of
// the collection. A missing collection is reported as RetrievalError with an
// error matching ErrCollectionNotFound.
func (r *DefaultRetriever) Retrieve(ctx context.Context, collection, query string, topK int) RetrievalResult {
	log := logging.FromContext(ctx)
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return Failed(fmt.Errorf("rag: embedding query failed: %w", err))
	}
	if len(embeddings) == 0 {
		return Failed(fmt.Errorf("rag: embedder returned empty result for query"))
	}

	store, err := r.collections.Open(ctx, collection, false)
	if err != nil {
		return Failed(fmt.Errorf("rag: open collection %q: %w", collection, err))
	}

	docs, err := store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return Failed(fmt.Errorf("rag: vector search failed: %w", err))
	}

	log.Debug("rag: retrieved documents",
		slog.String("collection", collection),
		slog.Int("top_k", topK),
		slog.Int("found", len(docs)),
	)
	return Succeeded(docs)
}
