package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func seededCollections(t *testing.T) *MemoryCollections {
	t.Helper()
	ctx := context.Background()
	c, err := NewMemoryCollections("")
	require.NoError(t, err)
	store, err := c.Open(ctx, "papers", true)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx,
		[]Document{{ID: "1", Content: "RAG combines retrieval and generation."}, {ID: "2", Content: "Unrelated."}},
		[][]float32{{1, 0}, {0, 1}},
	))
	_, err = c.Open(ctx, "empty", true)
	require.NoError(t, err)
	return c
}

func TestNewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewRetriever(nil, &MemoryCollections{}, 5)
	assert.Error(t, err)
	_, err = NewRetriever(&fakeEmbedder{}, nil, 5)
	assert.Error(t, err)
}

func TestRetrieve_Statuses(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vectors: map[string][]float32{"What is RAG?": {1, 0}}}
	r, err := NewRetriever(emb, seededCollections(t), 0)
	require.NoError(t, err)
	ctx := context.Background()

	res := r.Retrieve(ctx, "papers", "What is RAG?", 1)
	assert.Equal(t, RetrievalSuccess, res.Status)
	assert.Equal(t, []string{"RAG combines retrieval and generation."}, res.Contents())
	assert.NoError(t, res.Err)

	res = r.Retrieve(ctx, "empty", "What is RAG?", 0)
	assert.Equal(t, RetrievalEmpty, res.Status)
	assert.Empty(t, res.Documents)

	res = r.Retrieve(ctx, "missing", "What is RAG?", 0)
	assert.Equal(t, RetrievalError, res.Status)
	assert.ErrorIs(t, res.Err, ErrCollectionNotFound)
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("embedding service down")
	r, err := NewRetriever(&fakeEmbedder{err: boom}, seededCollections(t), 5)
	require.NoError(t, err)

	res := r.Retrieve(context.Background(), "papers", "q", 5)
	assert.Equal(t, RetrievalError, res.Status)
	assert.ErrorIs(t, res.Err, boom)
}

func TestSucceeded_EmptyIsEmpty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RetrievalEmpty, Succeeded(nil).Status)
}
