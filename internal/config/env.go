package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/54b3r/raglab-go/internal/memory"
	"github.com/54b3r/raglab-go/internal/provider"
	"github.com/54b3r/raglab-go/internal/rag"
)

// envOverride binds one environment variable to the config field it sets.
type envOverride struct {
	key   string
	apply func(c *Config, v string) error
}

// envOverrides lists every variable that overrides a config file value.
// A variable that is set but empty is ignored.
var envOverrides = []envOverride{
	// Chat model
	{"MODEL_PROVIDER", func(c *Config, v string) error { c.Model.Backend = provider.Backend(strings.ToLower(v)); return nil }},
	{"MODEL_MAX_TOKENS", intField(func(c *Config) *int { return &c.Model.MaxTokens })},
	{"MODEL_TEMPERATURE", float32Field(func(c *Config) *float32 { return &c.Model.Temperature })},
	{"OLLAMA_HOST", stringField(func(c *Config) *string { return &c.Model.Ollama.Host })},
	{"OLLAMA_MODEL", stringField(func(c *Config) *string { return &c.Model.Ollama.Model })},
	{"OPENAI_API_KEY", stringField(func(c *Config) *string { return &c.Model.OpenAI.APIKey })},
	{"OPENAI_MODEL", stringField(func(c *Config) *string { return &c.Model.OpenAI.Model })},
	{"AZURE_OPENAI_API_KEY", stringField(func(c *Config) *string { return &c.Model.AzureOpenAI.APIKey })},
	{"AZURE_OPENAI_ENDPOINT", stringField(func(c *Config) *string { return &c.Model.AzureOpenAI.Endpoint })},
	{"AZURE_OPENAI_DEPLOYMENT", stringField(func(c *Config) *string { return &c.Model.AzureOpenAI.Deployment })},
	{"AZURE_OPENAI_API_VERSION", stringField(func(c *Config) *string { return &c.Model.AzureOpenAI.APIVersion })},
	{"AWS_REGION", stringField(func(c *Config) *string { return &c.Model.Bedrock.AWSRegion })},
	{"BEDROCK_MODEL_ID", stringField(func(c *Config) *string { return &c.Model.Bedrock.ModelID })},
	{"BEDROCK_API_KEY", stringField(func(c *Config) *string { return &c.Model.Bedrock.APIKey })},
	{"BEDROCK_BASE_URL", stringField(func(c *Config) *string { return &c.Model.Bedrock.BaseURL })},
	{"GOOGLE_API_KEY", stringField(func(c *Config) *string { return &c.Model.Gemini.APIKey })},
	{"GEMINI_MODEL", stringField(func(c *Config) *string { return &c.Model.Gemini.Model })},

	// Embeddings
	{"EMBEDDING_PROVIDER", func(c *Config, v string) error { c.Embedding.Provider = strings.ToLower(v); return nil }},
	{"EMBEDDING_MODEL", stringField(func(c *Config) *string { return &c.Embedding.Model })},
	{"EMBEDDING_DIMENSIONS", intField(func(c *Config) *int { return &c.Embedding.Dimensions })},
	{"EMBEDDING_API_KEY", stringField(func(c *Config) *string { return &c.Embedding.APIKey })},
	{"EMBEDDING_ENDPOINT", stringField(func(c *Config) *string { return &c.Embedding.Endpoint })},
	{"EMBEDDING_API_VERSION", stringField(func(c *Config) *string { return &c.Embedding.APIVersion })},
	{"EMBEDDING_TASK_TYPE", stringField(func(c *Config) *string { return &c.Embedding.TaskType })},
	{"EMBEDDING_BATCH_SIZE", intField(func(c *Config) *int { return &c.Embedding.BatchSize })},

	// Vector store
	{"VECTOR_STORE", func(c *Config, v string) error { c.VectorStore.Backend = rag.Backend(strings.ToLower(v)); return nil }},
	{"QDRANT_HOST", stringField(func(c *Config) *string { return &c.VectorStore.Qdrant.Host })},
	{"QDRANT_PORT", intField(func(c *Config) *int { return &c.VectorStore.Qdrant.Port })},
	{"QDRANT_API_KEY", stringField(func(c *Config) *string { return &c.VectorStore.Qdrant.APIKey })},
	{"QDRANT_TLS", boolField(func(c *Config) *bool { return &c.VectorStore.Qdrant.UseTLS })},
	{"PGVECTOR_DSN", stringField(func(c *Config) *string { return &c.VectorStore.Pgvector.DSN })},
	{"RAGLAB_DATA_DIR", stringField(func(c *Config) *string { return &c.VectorStore.Memory.Dir })},

	// Conversation memory
	{"MEMORY_BACKEND", func(c *Config, v string) error { c.Memory.Backend = memory.Backend(strings.ToLower(v)); return nil }},
	{"RAGLAB_HISTORY_DB", stringField(func(c *Config) *string { return &c.Memory.SQLitePath })},
	{"REDIS_ADDR", stringField(func(c *Config) *string { return &c.Memory.Redis.Addr })},
	{"REDIS_PASSWORD", stringField(func(c *Config) *string { return &c.Memory.Redis.Password })},
	{"REDIS_DB", intField(func(c *Config) *int { return &c.Memory.Redis.DB })},
	{"MEMORY_TTL_HOURS", intField(func(c *Config) *int { return &c.Memory.TTLHours })},
	{"MEMORY_WINDOW", intField(func(c *Config) *int { return &c.Memory.Window })},

	// Chunking
	{"CHUNK_SIZE", intField(func(c *Config) *int { return &c.Chunking.ChunkSize })},
	{"CHUNK_OVERLAP", intField(func(c *Config) *int { return &c.Chunking.Overlap })},

	// Pipeline
	{"RAGLAB_COLLECTION", stringField(func(c *Config) *string { return &c.Pipeline.Collection })},
	{"RAGLAB_TOP_K", intField(func(c *Config) *int { return &c.Pipeline.TopK })},
	{"RAGLAB_TIMEOUT_SECONDS", intField(func(c *Config) *int { return &c.Pipeline.TimeoutSeconds })},
	{"RAGLAB_MAX_PROMPT_TOKENS", intField(func(c *Config) *int { return &c.Pipeline.MaxPromptTokens })},
	{"RAGLAB_LANGUAGE", stringField(func(c *Config) *string { return &c.Prompt.Language })},
	{"RAGLAB_FORMAT", stringField(func(c *Config) *string { return &c.Prompt.Format })},

	// Server
	{"RAGLAB_HOST", stringField(func(c *Config) *string { return &c.Server.Host })},
	{"RAGLAB_PORT", intField(func(c *Config) *int { return &c.Server.Port })},
	{"RAGLAB_API_KEY", stringField(func(c *Config) *string { return &c.Server.APIKey })},

	// Observability
	{"LOG_LEVEL", stringField(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", stringField(func(c *Config) *string { return &c.Logging.Format })},
	{"LANGFUSE_PUBLIC_KEY", stringField(func(c *Config) *string { return &c.Tracing.PublicKey })},
	{"LANGFUSE_SECRET_KEY", stringField(func(c *Config) *string { return &c.Tracing.SecretKey })},
	{"LANGFUSE_HOST", stringField(func(c *Config) *string { return &c.Tracing.Host })},
}

// applyEnv applies every set variable to cfg and returns how many were
// applied. lookup is os.LookupEnv outside tests.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) (int, error) {
	applied := 0
	for _, o := range envOverrides {
		v, ok := lookup(o.key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return applied, fmt.Errorf("config: %s: %w", o.key, err)
		}
		applied++
	}
	return applied, nil
}

func stringField(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intField(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*field(c) = n
		return nil
	}
}

func float32Field(field func(*Config) *float32) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		*field(c) = float32(f)
		return nil
	}
}

func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*field(c) = b
		return nil
	}
}
