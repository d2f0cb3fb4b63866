// Package provider builds the chat model used for generation and routing.
// Supported backends: Ollama, OpenAI, Azure OpenAI, AWS Bedrock (through the
// ark runtime) and Google Gemini. Every backend is returned as an eino
// [model.BaseChatModel] so callers never depend on a specific vendor SDK.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host" toml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model" toml:"model"`
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model" toml:"model"`
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment" toml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version" toml:"api_version"`
}

// ProviderBedrock holds AWS Bedrock settings.
type ProviderBedrock struct {
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string `yaml:"region" toml:"region"`
	// ModelID is the Bedrock model identifier.
	ModelID string `yaml:"model_id" toml:"model_id"`
	// APIKey is the runtime API key, when the endpoint requires one.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// BaseURL overrides the runtime endpoint.
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model" toml:"model"`
}

// SharedTuning holds generation settings common to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int `yaml:"max_tokens" toml:"max_tokens"`
	// Temperature controls response randomness (0.0 to 1.0).
	Temperature float32 `yaml:"temperature" toml:"temperature"`
}

// Config holds all provider-level configuration. Only the section matching
// Backend is read.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend `yaml:"provider" toml:"provider"`

	Ollama      ProviderOllama      `yaml:"ollama" toml:"ollama"`
	OpenAI      ProviderOpenAI      `yaml:"openai" toml:"openai"`
	AzureOpenAI ProviderAzureOpenAI `yaml:"azure" toml:"azure"`
	Bedrock     ProviderBedrock     `yaml:"bedrock" toml:"bedrock"`
	Gemini      ProviderGemini      `yaml:"gemini" toml:"gemini"`

	SharedTuning `yaml:",inline"`
}

// DefaultConfig returns a local Ollama setup with the shared defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendOllama,
		Ollama:       ProviderOllama{Host: "http://localhost:11434", Model: "llama3"},
		OpenAI:       ProviderOpenAI{Model: "gpt-4o"},
		AzureOpenAI:  ProviderAzureOpenAI{APIVersion: "2024-02-01"},
		Bedrock:      ProviderBedrock{AWSRegion: "us-east-1"},
		Gemini:       ProviderGemini{Model: "gemini-2.0-flash"},
		SharedTuning: SharedTuning{MaxTokens: 4096, Temperature: 0.2},
	}
}

// Validate checks that the selected backend has every required field, naming
// the environment variable that sets each missing one.
func (c Config) Validate() error {
	var missing []string
	require := func(v, env string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, env)
		}
	}

	switch c.Backend {
	case BackendOllama:
		require(c.Ollama.Host, "OLLAMA_HOST")
		require(c.Ollama.Model, "OLLAMA_MODEL")
	case BackendOpenAI:
		require(c.OpenAI.APIKey, "OPENAI_API_KEY")
		require(c.OpenAI.Model, "OPENAI_MODEL")
	case BackendAzure:
		require(c.AzureOpenAI.APIKey, "AZURE_OPENAI_API_KEY")
		require(c.AzureOpenAI.Endpoint, "AZURE_OPENAI_ENDPOINT")
		require(c.AzureOpenAI.Deployment, "AZURE_OPENAI_DEPLOYMENT")
	case BackendBedrock:
		require(c.Bedrock.AWSRegion, "AWS_REGION")
		require(c.Bedrock.ModelID, "BEDROCK_MODEL_ID")
	case BackendGemini:
		require(c.Gemini.APIKey, "GOOGLE_API_KEY")
		require(c.Gemini.Model, "GEMINI_MODEL")
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: ollama, openai, azure, bedrock, gemini", c.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("provider: %s backend requires %s", c.Backend, strings.Join(missing, ", "))
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider: MODEL_MAX_TOKENS must not be negative, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("provider: MODEL_TEMPERATURE %.2f outside [0, 2]", c.Temperature)
	}
	return nil
}

// ModelName returns the model or deployment the configuration selects.
func (c Config) ModelName() string {
	switch c.Backend {
	case BackendOllama:
		return c.Ollama.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendBedrock:
		return c.Bedrock.ModelID
	case BackendGemini:
		return c.Gemini.Model
	}
	return ""
}

// isAzureReasoningModel reports whether an Azure deployment name is an
// o-series or codex reasoning model, which reject temperature and max_tokens.
func isAzureReasoningModel(deployment string) bool {
	d := strings.ToLower(deployment)
	for _, p := range []string{"o1", "o3", "o4", "codex"} {
		if strings.HasPrefix(d, p) {
			return true
		}
	}
	return false
}
