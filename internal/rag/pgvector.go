package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// PgvectorConfig holds Postgres connection settings for the pgvector backend.
type PgvectorConfig struct {
	// DSN is the Postgres connection string. Prefer env var PGVECTOR_DSN.
	DSN string `yaml:"dsn" toml:"dsn"`
	// TablePrefix is prepended to every collection table name.
	TablePrefix string `yaml:"table_prefix" toml:"table_prefix"`
	// Lists is the ivfflat list count used when creating the index.
	Lists int `yaml:"lists" toml:"lists"`
}

// PgvectorCollections stores each collection in its own table with an
// ivfflat cosine index.
type PgvectorCollections struct {
	pool       *pgxpool.Pool
	prefix     string
	lists      int
	vectorSize int
}

// NewPgvectorCollections connects to Postgres, pings it and enables the
// vector extension.
func NewPgvectorCollections(ctx context.Context, cfg PgvectorConfig, vectorSize int) (*PgvectorCollections, error) {
	if cfg.TablePrefix == "" {
		cfg.TablePrefix = "raglab"
	}
	if cfg.Lists <= 0 {
		cfg.Lists = 100
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: failed to create vector extension: %w", err)
	}

	return &PgvectorCollections{
		pool:       pool,
		prefix:     cfg.TablePrefix,
		lists:      cfg.Lists,
		vectorSize: vectorSize,
	}, nil
}

// Ping checks the database connection.
func (c *PgvectorCollections) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

var unsafeTableChars = regexp.MustCompile(`[^a-z0-9_]+`)

// tableName maps a collection name to its table name.
func tableName(prefix, collection string) string {
	name := unsafeTableChars.ReplaceAllString(strings.ToLower(collection), "_")
	return prefix + "_" + name
}

// Open returns the store for the named collection, creating its table and
// index when create is true.
func (c *PgvectorCollections) Open(ctx context.Context, name string, create bool) (VectorStore, error) {
	table := tableName(c.prefix, name)

	var exists bool
	if err := c.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", table).Scan(&exists); err != nil {
		return nil, fmt.Errorf("pgvector: check table %s: %w", table, err)
	}
	if !exists {
		if !create {
			return nil, fmt.Errorf("pgvector: collection %q: %w", name, ErrCollectionNotFound)
		}
		if err := c.createTable(ctx, table); err != nil {
			return nil, err
		}
	}
	return &PgvectorStore{pool: c.pool, table: table}, nil
}

func (c *PgvectorCollections) createTable(ctx context.Context, table string) error {
	if c.vectorSize <= 0 {
		return fmt.Errorf("pgvector: cannot create table %s without a vector size", table)
	}
	ident := pgx.Identifier{table}.Sanitize()
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d)
		)`, ident, c.vectorSize)
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgvector: failed to create table %s: %w", table, err)
	}

	index := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = %d)`,
		pgx.Identifier{table + "_embedding_idx"}.Sanitize(), ident, c.lists)
	if _, err := c.pool.Exec(ctx, index); err != nil {
		return fmt.Errorf("pgvector: failed to create index on %s: %w", table, err)
	}
	return nil
}

// List returns the collections that have a table under the configured prefix.
func (c *PgvectorCollections) List(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name LIKE $1
		 ORDER BY table_name`, c.prefix+"\\_%")
	if err != nil {
		return nil, fmt.Errorf("pgvector: list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("pgvector: list tables: %w", err)
	}
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, c.prefix+"_")
	}
	return names, nil
}

// Close closes the connection pool.
func (c *PgvectorCollections) Close() error {
	c.pool.Close()
	return nil
}

// PgvectorStore implements VectorStore for one table.
type PgvectorStore struct {
	pool  *pgxpool.Pool
	table string
}

// mapPgError turns an undefined-table error into ErrCollectionNotFound.
func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("pgvector: %s: %w: %v", op, ErrCollectionNotFound, err)
	}
	return fmt.Errorf("pgvector: %s failed: %w", op, err)
}

// Upsert writes the batch in one transaction.
func (s *PgvectorStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("pgvector: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`,
		pgx.Identifier{s.table}.Sanitize())

	for i, doc := range docs {
		if _, err := tx.Exec(ctx, stmt,
			doc.ID, doc.Source, doc.Content, doc.Metadata, pgvector.NewVector(embeddings[i]),
		); err != nil {
			return mapPgError("upsert", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector: commit: %w", err)
	}
	return nil
}

// Search orders by cosine distance and reports 1 - distance as the score.
func (s *PgvectorStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		return []Document{}, nil
	}
	query := fmt.Sprintf(`
		SELECT id, source, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgx.Identifier{s.table}.Sanitize())

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, mapPgError("search", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		var score float64
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &doc.Metadata, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan: %w", err)
		}
		doc.Score = float32(score)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("search", err)
	}
	return docs, nil
}

// Delete removes documents by ID.
func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, pgx.Identifier{s.table}.Sanitize())
	if _, err := s.pool.Exec(ctx, stmt, ids); err != nil {
		return mapPgError("delete", err)
	}
	return nil
}

// DeleteSource removes the rows of one source.
func (s *PgvectorStore) DeleteSource(ctx context.Context, source string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE source = $1`, pgx.Identifier{s.table}.Sanitize())
	if _, err := s.pool.Exec(ctx, stmt, source); err != nil {
		return mapPgError("delete source", err)
	}
	return nil
}

// Count returns the number of rows in the table.
func (s *PgvectorStore) Count(ctx context.Context) (uint64, error) {
	var n int64
	stmt := fmt.Sprintf(`SELECT count(*) FROM %s`, pgx.Identifier{s.table}.Sanitize())
	if err := s.pool.QueryRow(ctx, stmt).Scan(&n); err != nil {
		return 0, mapPgError("count", err)
	}
	return uint64(n), nil
}
