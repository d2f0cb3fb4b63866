package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces conversation keys in Redis.
const keyPrefix = "conversation:"

// RedisStore keeps each conversation as one JSON array under
// "conversation:{id}", newest turn first, with a key expiry that every
// Append resets. See the package documentation for the concurrent-append
// limitation.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with PING.
// A failed ping is returned as an error; the store is never handed out in a
// half-connected state.
func NewRedisStore(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s, err := NewRedisStoreFromClient(ctx, client, ttl)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client. It pings the server
// before returning.
func NewRedisStoreFromClient(ctx context.Context, client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("memory: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("memory: redis ping %s: %w", client.Options().Addr, err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func key(conversationID string) string {
	return keyPrefix + conversationID
}

// Read returns the stored turns newest-first, or an empty slice when the
// key does not exist.
func (s *RedisStore) Read(ctx context.Context, conversationID string) ([]Turn, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}
	raw, err := s.client.Get(ctx, key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: redis get: %w", err)
	}

	turns := []Turn{}
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("memory: decode conversation %s: %w", conversationID, err)
	}
	return turns, nil
}

// Append reads the conversation, prepends the turn and writes the whole
// list back with a fresh expiry. The read and the write are separate
// commands: a concurrent Append to the same conversation between them is
// overwritten.
func (s *RedisStore) Append(ctx context.Context, conversationID string, role Role, content string) error {
	if err := checkAppend(conversationID, role); err != nil {
		return err
	}
	turns, err := s.Read(ctx, conversationID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(append([]Turn{{Role: role, Content: content}}, turns...))
	if err != nil {
		return fmt.Errorf("memory: encode conversation %s: %w", conversationID, err)
	}
	if err := s.client.Set(ctx, key(conversationID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("memory: redis set: %w", err)
	}
	return nil
}

// Delete removes the conversation key.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}
	if err := s.client.Del(ctx, key(conversationID)).Err(); err != nil {
		return fmt.Errorf("memory: redis del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("memory: redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("memory: redis close: %w", err)
	}
	return nil
}
