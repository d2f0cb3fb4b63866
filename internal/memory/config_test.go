package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "disabled", mutate: func(c *Config) { c.Backend = BackendDisabled }},
		{name: "redis without addr", mutate: func(c *Config) { c.Backend = BackendRedis; c.Redis.Addr = "" }, wantErr: "REDIS_ADDR"},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "etcd" }, wantErr: "unknown backend"},
		{name: "negative ttl", mutate: func(c *Config) { c.TTLHours = -1 }, wantErr: "ttl_hours"},
		{name: "negative window", mutate: func(c *Config) { c.Window = -2 }, wantErr: "window"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfig_TTL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 24*time.Hour, Config{}.TTL())
	assert.Equal(t, 2*time.Hour, Config{TTLHours: 2}.TTL())
}

func TestOpen_Backends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendDisabled})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, s)

	s, err = Open(ctx, Config{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "m.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.IsType(t, &SQLiteStore{}, s)
}
