// Package tracing wires Langfuse tracing into every eino chat model call.
package tracing

import (
	"errors"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is the Langfuse host used when none is configured.
const DefaultHost = "http://localhost:3000"

// Config holds Langfuse settings. Tracing is enabled when both keys are set.
type Config struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key" toml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host" toml:"host"`
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Validate rejects a half-configured key pair.
func (c Config) Validate() error {
	if (c.PublicKey == "") != (c.SecretKey == "") {
		return errors.New("tracing: LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY must be set together")
	}
	return nil
}

// Setup registers the Langfuse callback handler globally when cfg is
// enabled. The returned flush function must be called before process exit
// so buffered traces are sent. When tracing is disabled flush is a no-op and
// enabled is false.
func Setup(cfg Config) (flush func(), enabled bool) {
	if !cfg.Enabled() {
		return func() {}, false
	}
	host := cfg.Host
	if host == "" {
		host = DefaultHost
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})
	callbacks.AppendGlobalHandlers(handler)

	return flusher, true
}
