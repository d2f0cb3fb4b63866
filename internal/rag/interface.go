// Package rag defines the retrieval side of the lab: vector storage,
// collections, embedding and the retriever that ties them together.
// Concrete backends (Qdrant, pgvector, in-process) satisfy these interfaces
// so the pipeline never depends on a specific engine.
package rag

import (
	"context"
	"errors"
)

// ErrCollectionNotFound is returned when a named collection does not exist
// and the caller did not ask for it to be created.
var ErrCollectionNotFound = errors.New("rag: collection not found")

// Document represents a unit of retrieved or stored knowledge.
type Document struct {
	// ID is the unique identifier for this chunk (a UUID string).
	ID string `json:"id"`

	// Content is the raw text content of the chunk.
	Content string `json:"content"`

	// Source is the origin path or URL of the document.
	Source string `json:"source"`

	// Metadata holds chunk position and source details.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Score is the similarity assigned during retrieval. Zero means the
	// score was not computed.
	Score float32 `json:"score,omitempty"`
}

// VectorStore persists and searches the embeddings of one collection.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed
	// embeddings. embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns at most topK documents ordered by descending
	// similarity. Backends using an approximate index may not return the
	// exact cosine ranking beyond the first results.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// DeleteSource removes every document whose Source equals source.
	DeleteSource(ctx context.Context, source string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (uint64, error)
}

// Collections opens named collections on one backend connection.
// Implementations must be safe to call from multiple goroutines.
type Collections interface {
	// Open returns the store for the named collection. When the collection
	// does not exist and create is false it returns ErrCollectionNotFound.
	Open(ctx context.Context, name string, create bool) (VectorStore, error)

	// List returns the names of the existing collections.
	List(ctx context.Context) ([]string, error)

	// Close releases the backend connection shared by every opened store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever fetches relevant context for a query from a named collection.
// Failures are reported inside the result, never as a panic.
type Retriever interface {
	Retrieve(ctx context.Context, collection, query string, topK int) RetrievalResult
}
