// Package modelgate provides a thin abstraction over multiple hosted LLM
// provider APIs (OpenAI, Anthropic, Google, plus any OpenAI-compatible
// endpoint such as Ollama). A model-name prefix selects the provider, a
// system/user prompt template is wired for you, and two call shapes are
// exposed:
//  1. Call - single-shot request, optionally with structured-output schema
//     validation or tool binding
//  2. CallStream - incremental token stream
//
// Both paths are wrapped in a retry-with-exponential-backoff helper. Calls
// are independent and stateless; no session or conversation state is kept
// between them.
package modelgate

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/modelgate/logging"
	"github.com/hupe1980/modelgate/model"
)

// Process-wide immutable defaults. DefaultModel is used whenever a caller
// supplies no model name.
const (
	DefaultProvider     = "openai"
	DefaultModel        = "gpt-4o-mini"
	DefaultSystemPrompt = "You are a helpful AI assistant."
)

// Options configures a Client.
type Options struct {
	// DefaultModel is used when a call supplies no model name.
	DefaultModel string
	// SystemPrompt is the default system message for calls that supply none.
	SystemPrompt string
	// PromptTemplate renders the user message; the caller's prompt is bound
	// to the "prompt" variable.
	PromptTemplate string
	// MaxTokens caps the completion length passed to providers.
	MaxTokens int
	// Temperature is the sampling temperature passed to providers.
	Temperature float64
	// MaxAttempts is the retry ceiling applied to both call shapes.
	MaxAttempts int
	// BaseDelay is the first backoff delay; each retry doubles it.
	BaseDelay time.Duration
	// Sleep waits between retry attempts on both call shapes; nil means a
	// context-aware timer. Overridable for tests.
	Sleep func(ctx context.Context, d time.Duration) error
	// Registry resolves model names to provider factories.
	Registry *Registry
	// Logger receives structured call events (defaults to NoOp).
	Logger logging.Logger
}

// Client is the entry point for issuing model calls. It is stateless apart
// from its configuration and safe for concurrent use.
type Client struct {
	opts     Options
	registry *Registry
	logger   logging.Logger
}

// New creates a Client with optional overrides.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		DefaultModel:   DefaultModel,
		SystemPrompt:   DefaultSystemPrompt,
		PromptTemplate: "{{.prompt}}",
		MaxTokens:      4096,
		Temperature:    0.7,
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Client{opts: opts, registry: registry, logger: logger}
}

// ChatModel resolves a configured model instance for modelName (or the
// client default when empty). It is the escape hatch for callers that want
// to drive model.Model directly.
func (c *Client) ChatModel(modelName string, streaming bool) (model.Model, error) {
	if modelName == "" {
		modelName = c.opts.DefaultModel
	}
	factory := c.registry.Resolve(modelName)
	return factory(FactoryConfig{
		ModelName:   modelName,
		Streaming:   streaming,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
	})
}

var defaultClient = sync.OnceValue(func() *Client {
	return New(func(o *Options) {
		o.Logger = logging.NewDefaultSlogLogger()
	})
})

// Call issues a single-shot request on a shared default client.
func Call(ctx context.Context, prompt string, optFns ...func(o *CallOptions)) (*Result, error) {
	return defaultClient().Call(ctx, prompt, optFns...)
}

// CallStream opens a token stream on a shared default client.
func CallStream(ctx context.Context, prompt string, optFns ...func(o *StreamOptions)) (<-chan string, <-chan error) {
	return defaultClient().CallStream(ctx, prompt, optFns...)
}

// ChatModel resolves a model instance on a shared default client.
func ChatModel(modelName string, streaming bool) (model.Model, error) {
	return defaultClient().ChatModel(modelName, streaming)
}
