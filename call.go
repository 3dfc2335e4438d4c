package modelgate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/modelgate/internal/util"
	"github.com/hupe1980/modelgate/logging"
	"github.com/hupe1980/modelgate/model"
	"github.com/hupe1980/modelgate/retry"
)

// CallOptions configures a single Call. All fields are optional.
type CallOptions struct {
	// Model selects the provider by prefix; empty means the client default.
	Model string
	// SystemPrompt overrides the client's default system message.
	SystemPrompt string
	// OutputSchema requests structured output validated against this JSON
	// schema. Takes precedence over Tools.
	OutputSchema map[string]any
	// Tools are bound to the request when non-empty (and no OutputSchema is
	// set); the full assistant message is returned so tool-call instructions
	// are not discarded.
	Tools []model.ToolDefinition
	// MaxTokens / Temperature override the client defaults when > 0.
	MaxTokens   int
	Temperature float64
	// MaxAttempts overrides the retry ceiling when > 0.
	MaxAttempts int
}

// Result is the normalized outcome of a Call. Exactly one of Text,
// Structured or Message is populated, determined by which options were
// supplied: OutputSchema -> Structured, Tools -> Message, otherwise Text.
type Result struct {
	// Text is the plain completion (default path).
	Text string
	// Structured is the schema-validated object (OutputSchema path).
	Structured map[string]any
	// Message is the full assistant content including tool calls (Tools path).
	Message *model.Content

	FinishReason string
	Usage        *model.TokenUsage
}

// Call builds a system+user prompt, resolves a non-streaming model for the
// requested name, optionally layers structured-output enforcement or tool
// binding, and invokes the pipeline through the retry helper.
//
// The model is resolved once, before any attempt: a configuration failure
// such as a missing credential surfaces immediately and is never retried.
// Inside the pipeline the retry is blind: validation and transient provider
// errors are re-attempted identically up to the ceiling, and the final
// attempt's error is returned unmodified.
func (c *Client) Call(ctx context.Context, prompt string, optFns ...func(o *CallOptions)) (*Result, error) {
	opts := CallOptions{
		Model:        c.opts.DefaultModel,
		SystemPrompt: c.opts.SystemPrompt,
		MaxTokens:    c.opts.MaxTokens,
		Temperature:  c.opts.Temperature,
		MaxAttempts:  c.opts.MaxAttempts,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Model == "" {
		opts.Model = c.opts.DefaultModel
	}

	userPrompt, err := util.RenderTemplate(c.opts.PromptTemplate, map[string]any{"prompt": prompt})
	if err != nil {
		return nil, fmt.Errorf("render prompt template: %w", err)
	}

	structured := len(opts.OutputSchema) > 0
	if structured {
		userPrompt = appendSchemaInstructions(userPrompt, opts.OutputSchema)
	}

	contents := []model.Content{
		model.NewTextContent("system", opts.SystemPrompt),
		model.NewTextContent("user", userPrompt),
	}

	callID := uuid.NewString()
	c.logger.Debug("Model call starting",
		"call_id", callID,
		"model", opts.Model,
		"prompt_length", len(userPrompt),
		"has_tools", len(opts.Tools) > 0,
		"structured_output", structured,
	)

	start := time.Now()

	factory := c.registry.Resolve(opts.Model)
	mdl, err := factory(FactoryConfig{
		ModelName:   opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		logging.LogModelCall(c.logger, opts.Model, 0, time.Since(start), err)
		return nil, err
	}

	result, err := retry.Do(ctx, func(ctx context.Context) (*Result, error) {
		return c.callOnce(ctx, mdl, contents, &opts, structured)
	}, func(o *retry.Options) {
		o.MaxAttempts = opts.MaxAttempts
		o.BaseDelay = c.opts.BaseDelay
		o.Sleep = c.opts.Sleep
	})

	tokens := 0
	if result != nil && result.Usage != nil {
		tokens = result.Usage.TotalTokens
	}
	logging.LogModelCall(c.logger, opts.Model, tokens, time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// callOnce performs one attempt against the resolved model: generate, drain
// and normalize the final response.
func (c *Client) callOnce(
	ctx context.Context,
	mdl model.Model,
	contents []model.Content,
	opts *CallOptions,
	structured bool,
) (*Result, error) {
	req := model.Request{Contents: contents}
	toolsBound := false
	if !structured && len(opts.Tools) > 0 && mdl.Info().SupportsTools {
		req.Tools = opts.Tools
		toolsBound = true
	}

	respCh, errCh := mdl.Generate(ctx, req)
	final, err := drainResponses(ctx, respCh, errCh)
	if err != nil {
		return nil, err
	}

	result := &Result{FinishReason: final.FinishReason, Usage: final.Usage}
	switch {
	case structured:
		obj, err := parseStructured(final.Content.Text(), opts.OutputSchema)
		if err != nil {
			return nil, err
		}
		result.Structured = obj
	case toolsBound:
		content := final.Content
		result.Message = &content
	default:
		result.Text = final.Content.Text()
	}
	return result, nil
}

// drainResponses consumes the generation channels until both close, keeping
// the final (non-partial) response.
func drainResponses(ctx context.Context, respCh <-chan model.Response, errCh <-chan error) (model.Response, error) {
	var final model.Response
	gotFinal := false

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return model.Response{}, ctx.Err()

		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final = resp
				gotFinal = true
			}

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return model.Response{}, err
			}
		}
	}

	if !gotFinal {
		return model.Response{}, fmt.Errorf("model returned no final response")
	}
	return final, nil
}
