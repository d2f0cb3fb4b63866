// Package audit emits one structured log entry per CLI command describing the
// resolved configuration, so operators can trace which backends a run used
// without exposing secret values.
//
// Secrets are logged as presence ("set") or absence ("unset") only.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/54b3r/raglab-go/internal/config"
)

// LogCommandStart records the command name, the config file source and the
// effective backend selection.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string, cfg *config.Config) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}
	if cfg != nil {
		attrs = append(attrs, configAttrs(cfg)...)
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// configAttrs flattens the operational settings of cfg into log attributes.
func configAttrs(cfg *config.Config) []slog.Attr {
	return []slog.Attr{
		slog.Group("model",
			slog.String("provider", string(cfg.Model.Backend)),
			slog.String("name", valOrUnset(cfg.Model.ModelName())),
			slog.String("api_key", presence(modelKey(cfg))),
		),
		slog.Group("embedding",
			slog.String("provider", cfg.Embedding.Provider),
			slog.String("model", valOrUnset(cfg.Embedding.Model)),
			slog.String("api_key", presence(cfg.Embedding.APIKey)),
		),
		slog.Group("vector_store",
			slog.String("backend", string(cfg.VectorStore.Backend)),
			slog.String("qdrant_api_key", presence(cfg.VectorStore.Qdrant.APIKey)),
			slog.String("pgvector_dsn", presence(cfg.VectorStore.Pgvector.DSN)),
		),
		slog.Group("memory",
			slog.String("backend", string(cfg.Memory.Backend)),
			slog.Int("ttl_hours", cfg.Memory.TTLHours),
			slog.String("redis_password", presence(cfg.Memory.Redis.Password)),
		),
		slog.String("collection", cfg.Pipeline.Collection),
		slog.String("server_api_key", presence(cfg.Server.APIKey)),
		slog.Bool("tracing", cfg.Tracing.Enabled()),
	}
}

// modelKey returns the credential of the selected chat backend.
func modelKey(cfg *config.Config) string {
	m := cfg.Model
	switch m.Backend {
	case "openai":
		return m.OpenAI.APIKey
	case "azure":
		return m.AzureOpenAI.APIKey
	case "bedrock":
		return m.Bedrock.APIKey
	case "gemini":
		return m.Gemini.APIKey
	}
	return ""
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	// Redact home directory for privacy in logs.
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
