package modelgate

import (
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/modelgate/model"
	anthropicmodel "github.com/hupe1980/modelgate/model/anthropic"
	googlemodel "github.com/hupe1980/modelgate/model/google"
	openaimodel "github.com/hupe1980/modelgate/model/openai"
)

// Environment variables consulted by the built-in provider factories. Keys
// are read at factory-invocation time and never cached, so rotating a key
// takes effect on the next call.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvOllamaAPIKey    = "OLLAMA_API_KEY"
	EnvOllamaBaseURL   = "OLLAMA_BASE_URL"
)

// FactoryConfig carries the per-call parameters a provider factory needs to
// construct a chat-capable model.
type FactoryConfig struct {
	ModelName   string
	Streaming   bool
	MaxTokens   int
	Temperature float64
}

// Factory constructs a chat-capable model for one provider.
type Factory func(cfg FactoryConfig) (model.Model, error)

type rule struct {
	prefix  string
	factory Factory
}

// Registry maps model-name prefixes to provider factories. Rules are
// evaluated in registration order, first match wins; names matching no rule
// fall through to the fallback factory (OpenAI).
type Registry struct {
	rules    []rule
	fallback Factory
}

// NewRegistry returns a registry preloaded with the built-in provider rules:
// "ollama-" (OpenAI-compatible endpoint), "claude-" (Anthropic) and
// "gemini-" (Google), falling back to OpenAI for everything else.
func NewRegistry() *Registry {
	return &Registry{
		rules: []rule{
			{prefix: "ollama-", factory: ollamaFactory},
			{prefix: "claude-", factory: anthropicFactory},
			{prefix: "gemini-", factory: googleFactory},
		},
		fallback: openaiFactory,
	}
}

// Register appends a prefix rule. Later registrations only apply to names not
// claimed by an earlier prefix.
func (r *Registry) Register(prefix string, factory Factory) {
	r.rules = append(r.rules, rule{prefix: prefix, factory: factory})
}

// SetFallback replaces the fallback factory used when no prefix matches.
func (r *Registry) SetFallback(factory Factory) { r.fallback = factory }

// Resolve returns the factory for the first registered prefix matching
// modelName, or the fallback factory. Pure selection logic, deterministic.
func (r *Registry) Resolve(modelName string) Factory {
	for _, rl := range r.rules {
		if strings.HasPrefix(modelName, rl.prefix) {
			return rl.factory
		}
	}
	return r.fallback
}

// anthropicFactory builds a Claude model. The API key is validated eagerly so
// a missing key surfaces before any network call.
func anthropicFactory(cfg FactoryConfig) (model.Model, error) {
	apiKey := os.Getenv(EnvAnthropicAPIKey)
	if apiKey == "" {
		return nil, &MissingCredentialError{Provider: "anthropic", EnvVar: EnvAnthropicAPIKey}
	}
	return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
		o.Model = anthropicsdk.Model(cfg.ModelName)
		o.Streaming = cfg.Streaming
		o.APIKey = apiKey
		if cfg.MaxTokens > 0 {
			o.MaxTokens = int64(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
	}), nil
}

// googleFactory builds a Gemini model. The API key is validated eagerly.
func googleFactory(cfg FactoryConfig) (model.Model, error) {
	apiKey := os.Getenv(EnvGoogleAPIKey)
	if apiKey == "" {
		return nil, &MissingCredentialError{Provider: "google", EnvVar: EnvGoogleAPIKey}
	}
	return googlemodel.NewModel(func(o *googlemodel.Options) {
		o.Model = cfg.ModelName
		o.Streaming = cfg.Streaming
		o.APIKey = apiKey
		if cfg.MaxTokens > 0 {
			o.MaxTokens = int32(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
	}), nil
}

// openaiFactory is the fallback for model names matching no registered
// prefix. Unlike the Anthropic/Google factories the key is NOT validated
// eagerly; a missing OPENAI_API_KEY surfaces as an authentication failure at
// request time.
func openaiFactory(cfg FactoryConfig) (model.Model, error) {
	return openaimodel.NewModel(func(o *openaimodel.Options) {
		o.Model = cfg.ModelName
		o.Streaming = cfg.Streaming
		o.APIKey = os.Getenv(EnvOpenAIAPIKey)
		if cfg.MaxTokens > 0 {
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
	}), nil
}

// ollamaFactory routes "ollama-" prefixed names to an OpenAI-compatible
// endpoint. Names ending in "-cloud" target the hosted service and carry the
// OLLAMA_API_KEY; otherwise a local daemon is assumed.
func ollamaFactory(cfg FactoryConfig) (model.Model, error) {
	name := strings.TrimPrefix(cfg.ModelName, "ollama-")
	cloud := strings.HasSuffix(name, "-cloud")

	baseURL := os.Getenv(EnvOllamaBaseURL)
	if baseURL == "" {
		if cloud {
			baseURL = "https://ollama.com/v1"
		} else {
			baseURL = "http://localhost:11434/v1"
		}
	}

	var apiKey string
	if cloud {
		apiKey = os.Getenv(EnvOllamaAPIKey)
	}

	return openaimodel.NewModel(func(o *openaimodel.Options) {
		o.Model = name
		o.Streaming = cfg.Streaming
		o.APIKey = apiKey
		o.BaseURL = baseURL
		if cfg.MaxTokens > 0 {
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			o.Temperature = cfg.Temperature
		}
	}), nil
}
