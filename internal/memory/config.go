package memory

import (
	"context"
	"fmt"
	"time"
)

// Backend selects the conversation store implementation.
type Backend string

const (
	// BackendSQLite stores conversations in a local SQLite file.
	BackendSQLite Backend = "sqlite"
	// BackendRedis stores conversations in Redis.
	BackendRedis Backend = "redis"
	// BackendDisabled turns conversational memory off.
	BackendDisabled Backend = "disabled"
)

// DefaultWindow is the number of most recent turns rendered into a prompt.
const DefaultWindow = 5

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	Addr string `yaml:"addr" toml:"addr"`
	// Password is the Redis password. Prefer env var REDIS_PASSWORD.
	Password string `yaml:"password" toml:"password"`
	// DB is the Redis logical database index.
	DB int `yaml:"db" toml:"db"`
}

// Config selects and configures the conversation store.
type Config struct {
	// Backend is sqlite, redis or disabled.
	Backend Backend `yaml:"backend" toml:"backend"`
	// SQLitePath is the database file for the sqlite backend. Empty uses
	// DefaultDBPath.
	SQLitePath string `yaml:"sqlite_path" toml:"sqlite_path"`
	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis" toml:"redis"`
	// TTLHours is the inactivity window in hours.
	TTLHours int `yaml:"ttl_hours" toml:"ttl_hours"`
	// Window is how many recent turns are rendered into each prompt.
	Window int `yaml:"window" toml:"window"`
}

// DefaultConfig returns the sqlite backend with a 24h expiry and a window of
// five turns.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendSQLite,
		Redis:    RedisConfig{Addr: "localhost:6379"},
		TTLHours: int(DefaultTTL / time.Hour),
		Window:   DefaultWindow,
	}
}

// TTL returns the configured expiry as a duration.
func (c Config) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return DefaultTTL
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendDisabled:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("memory: REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("memory: unknown backend %q, valid values: sqlite, redis, disabled", c.Backend)
	}
	if c.TTLHours < 0 {
		return fmt.Errorf("memory: ttl_hours must not be negative, got %d", c.TTLHours)
	}
	if c.Window < 0 {
		return fmt.Errorf("memory: window must not be negative, got %d", c.Window)
	}
	return nil
}

// Open constructs the configured Store. Connection failures are returned
// here rather than on first use.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis, cfg.TTL())
	case BackendDisabled:
		return Nop{}, nil
	default:
		path := cfg.SQLitePath
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return OpenSQLite(path, cfg.TTL())
	}
}
