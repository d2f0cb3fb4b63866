package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "default qdrant", cfg: DefaultConfig()},
		{name: "qdrant without host", cfg: Config{Backend: BackendQdrant}, wantErr: "QDRANT_HOST"},
		{name: "qdrant bad port", cfg: Config{Backend: BackendQdrant, Qdrant: QdrantConfig{Host: "h", Port: 70000}}, wantErr: "QDRANT_PORT"},
		{name: "pgvector without dsn", cfg: Config{Backend: BackendPgvector}, wantErr: "PGVECTOR_DSN"},
		{name: "pgvector", cfg: Config{Backend: BackendPgvector, Pgvector: PgvectorConfig{DSN: "postgres://localhost/rag"}}},
		{name: "memory", cfg: Config{Backend: BackendMemory}},
		{name: "unknown", cfg: Config{Backend: "chroma"}, wantErr: "unknown vector store backend"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestOpenCollections_Memory(t *testing.T) {
	t.Parallel()

	c, err := OpenCollections(context.Background(), Config{Backend: BackendMemory}, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.IsType(t, &MemoryCollections{}, c)
}

func TestTableName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "raglab_synthetic_dataset_papers", tableName("raglab", "synthetic_dataset_papers"))
	assert.Equal(t, "raglab_direito_constitucional", tableName("raglab", "Direito Constitucional"))
	assert.Equal(t, "raglab_a_b", tableName("raglab", "a;-- b"))
}
