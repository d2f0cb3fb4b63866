// Package memory persists conversation turns keyed by a conversation id.
//
// Conversations are returned newest-first and expire after a period of
// inactivity; every Append resets the expiry. A conversation that has
// expired reads as empty.
//
// Concurrency: Append is a read-modify-write of the whole conversation on
// the Redis backend. Two turns appended concurrently to the same
// conversation may interleave and the last writer wins, dropping the other
// writer's turn. This is accepted for single-user sessions and is not
// guarded against. The SQLite backend appends rows and does not lose turns.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is the inactivity window after which a conversation expires.
const DefaultTTL = 24 * time.Hour

// ErrEmptyConversationID is returned when an operation is called without a
// conversation id.
var ErrEmptyConversationID = errors.New("memory: conversation id must not be empty")

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a message sent by the person asking.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
	// RoleSystem is an instruction injected by the application.
	RoleSystem Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Turn is a single role-tagged message.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Store persists conversation turns. Implementations must be safe for
// concurrent use across different conversation ids.
type Store interface {
	// Read returns the turns of a conversation, newest first. Unknown or
	// expired conversations return an empty slice and no error.
	Read(ctx context.Context, conversationID string) ([]Turn, error)
	// Append adds one turn to the front of the conversation and resets its
	// expiry.
	Append(ctx context.Context, conversationID string, role Role, content string) error
	// Delete removes the conversation.
	Delete(ctx context.Context, conversationID string) error
	// Close releases any resources held by the store.
	Close() error
}

// checkAppend validates the arguments shared by every Append implementation.
func checkAppend(conversationID string, role Role) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	if !role.Valid() {
		return fmt.Errorf("memory: unknown role %q", role)
	}
	return nil
}

// Nop is a Store that remembers nothing. It is used when memory is disabled.
type Nop struct{}

// Read always returns an empty conversation.
func (Nop) Read(context.Context, string) ([]Turn, error) { return []Turn{}, nil }

// Append discards the turn.
func (Nop) Append(context.Context, string, Role, string) error { return nil }

// Delete does nothing.
func (Nop) Delete(context.Context, string) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
