package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a Store backed by a local SQLite database. Turns are kept
// as rows; a separate table tracks when each conversation expires.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// ttl is the inactivity window applied on every append.
	ttl time.Duration
	// now is the clock, replaced in tests.
	now func() time.Time
}

// DefaultDBPath returns the default path for the conversation database.
// It resolves to ~/.raglab/memory.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("memory: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".raglab")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("memory: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "memory.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteStore at path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests. A ttl <= 0
// uses DefaultTTL.
func OpenSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", path, err)
	}
	// Single writer connection; also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversations (
    id          TEXT    PRIMARY KEY,
    expires_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS turns (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT    NOT NULL,
    role            TEXT    NOT NULL CHECK(role IN ('user','assistant','system')),
    content         TEXT    NOT NULL,
    created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation
    ON turns (conversation_id, id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("memory: migrate: %w", err)
	}
	return nil
}

// Read returns the turns of a conversation newest-first. Expired
// conversations are purged and read as empty.
func (s *SQLiteStore) Read(ctx context.Context, conversationID string) ([]Turn, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM conversations WHERE id = ?`, conversationID).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read expiry: %w", err)
	}
	if s.now().Unix() >= expiresAt {
		if err := s.Delete(ctx, conversationID); err != nil {
			return nil, err
		}
		return []Turn{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE conversation_id = ? ORDER BY id DESC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("memory: read: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		var role string
		if err := rows.Scan(&role, &t.Content); err != nil {
			return nil, fmt.Errorf("memory: read scan: %w", err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: read rows: %w", err)
	}
	return turns, nil
}

// Append persists one turn and pushes the conversation expiry forward. If
// the conversation had already expired its old turns are dropped first.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, role Role, content string) error {
	if err := checkAppend(conversationID, role); err != nil {
		return err
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: append begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM turns WHERE conversation_id IN (SELECT id FROM conversations WHERE id = ? AND expires_at <= ?)`,
		conversationID, now.Unix()); err != nil {
		return fmt.Errorf("memory: append purge: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, string(role), content, now.Unix()); err != nil {
		return fmt.Errorf("memory: append: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, expires_at) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at`,
		conversationID, now.Add(s.ttl).Unix()); err != nil {
		return fmt.Errorf("memory: append expiry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory: append commit: %w", err)
	}
	return nil
}

// Delete removes every turn of the conversation and its expiry record.
func (s *SQLiteStore) Delete(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("memory: delete turns: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("memory: delete conversation: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("memory: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("memory: close: %w", err)
	}
	return nil
}
