package rag

import (
	"context"
	"fmt"
)

// Backend selects the vector store engine.
type Backend string

const (
	// BackendQdrant stores vectors in Qdrant.
	BackendQdrant Backend = "qdrant"
	// BackendPgvector stores vectors in Postgres with the pgvector extension.
	BackendPgvector Backend = "pgvector"
	// BackendMemory keeps vectors in process with optional file snapshots.
	BackendMemory Backend = "memory"
)

// MemoryConfig configures the in-process backend.
type MemoryConfig struct {
	// Dir holds the collection snapshots. Empty keeps them in memory only.
	Dir string `yaml:"dir" toml:"dir"`
}

// Config selects and configures the vector store backend.
type Config struct {
	Backend  Backend        `yaml:"backend" toml:"backend"`
	Qdrant   QdrantConfig   `yaml:"qdrant" toml:"qdrant"`
	Pgvector PgvectorConfig `yaml:"pgvector" toml:"pgvector"`
	Memory   MemoryConfig   `yaml:"memory" toml:"memory"`
}

// DefaultConfig targets a local Qdrant.
func DefaultConfig() Config {
	return Config{
		Backend: BackendQdrant,
		Qdrant:  QdrantConfig{Host: "localhost", Port: 6334},
	}
}

// Validate checks the selected backend's required settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendQdrant:
		if c.Qdrant.Host == "" {
			return fmt.Errorf("rag: QDRANT_HOST is required for the qdrant backend")
		}
		if c.Qdrant.Port < 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("rag: QDRANT_PORT %d is out of range", c.Qdrant.Port)
		}
	case BackendPgvector:
		if c.Pgvector.DSN == "" {
			return fmt.Errorf("rag: PGVECTOR_DSN is required for the pgvector backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("rag: unknown vector store backend %q, valid values: qdrant, pgvector, memory", c.Backend)
	}
	return nil
}

// OpenCollections connects to the configured backend. vectorSize is used
// when a collection has to be created.
func OpenCollections(ctx context.Context, cfg Config, vectorSize int) (Collections, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendPgvector:
		return NewPgvectorCollections(ctx, cfg.Pgvector, vectorSize)
	case BackendMemory:
		return NewMemoryCollections(cfg.Memory.Dir)
	default:
		return NewQdrantCollections(cfg.Qdrant, vectorSize)
	}
}
