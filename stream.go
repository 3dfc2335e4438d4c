package modelgate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/modelgate/internal/util"
	"github.com/hupe1980/modelgate/model"
)

// StreamOptions configures a CallStream. All fields are optional.
type StreamOptions struct {
	// Model selects the provider by prefix; empty means the client default.
	Model string
	// SystemPrompt overrides the client's default system message.
	SystemPrompt string
	// MaxTokens / Temperature override the client defaults when > 0.
	MaxTokens   int
	Temperature float64
	// MaxAttempts overrides the retry ceiling when > 0.
	MaxAttempts int
}

// CallStream builds the same system+user prompt as Call, resolves a
// streaming model and forwards every non-empty text fragment on the returned
// channel in arrival order.
//
// The model is resolved once, before the first attempt: a configuration
// failure such as a missing credential is sent on the error channel
// immediately and never retried. Failures while opening or consuming the
// stream abandon the attempt and re-open the stream from the beginning after
// the backoff delay (same 500ms*2^i schedule as Call). Fragments already
// delivered are NOT retracted, so a consumer may observe a prefix of the
// output twice across a retry. When all attempts are exhausted the last
// error is sent on the error channel. Both channels are closed when the producer finishes; cancellation
// is caller-driven via ctx.
func (c *Client) CallStream(ctx context.Context, prompt string, optFns ...func(o *StreamOptions)) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errOut := make(chan error, 1)

	opts := StreamOptions{
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
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	go func() {
		defer close(out)
		defer close(errOut)

		userPrompt, err := util.RenderTemplate(c.opts.PromptTemplate, map[string]any{"prompt": prompt})
		if err != nil {
			errOut <- fmt.Errorf("render prompt template: %w", err)
			return
		}
		contents := []model.Content{
			model.NewTextContent("system", opts.SystemPrompt),
			model.NewTextContent("user", userPrompt),
		}

		streamID := uuid.NewString()
		c.logger.Debug("Model stream starting",
			"stream_id", streamID,
			"model", opts.Model,
			"prompt_length", len(userPrompt),
		)

		start := time.Now()

		factory := c.registry.Resolve(opts.Model)
		mdl, err := factory(FactoryConfig{
			ModelName:   opts.Model,
			Streaming:   true,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		})
		if err != nil {
			errOut <- err
			return
		}

		sleep := c.opts.Sleep
		if sleep == nil {
			sleep = func(ctx context.Context, d time.Duration) error {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(d):
					return nil
				}
			}
		}

		delay := c.opts.BaseDelay
		var lastErr error
		for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
			usage, err := c.streamOnce(ctx, mdl, contents, attempt+1, out)
			if err == nil {
				tokens := 0
				if usage != nil {
					tokens = usage.TotalTokens
				}
				c.logger.Debug("Model stream complete",
					"stream_id", streamID,
					"model", opts.Model,
					"token_count", tokens,
					"duration", time.Since(start),
					"attempts", attempt+1,
				)
				return
			}
			lastErr = err
			c.logger.Warn("Stream attempt failed",
				"stream_id", streamID,
				"attempt", attempt+1,
				"error", err.Error(),
			)
			if attempt == opts.MaxAttempts-1 {
				break
			}
			if err := sleep(ctx, delay); err != nil {
				errOut <- err
				return
			}
			delay *= 2
		}
		errOut <- lastErr
	}()

	return out, errOut
}

// streamOnce opens a fresh stream on the resolved model and forwards its
// non-empty text fragments, reporting the final aggregate's token usage. An
// error after fragments were delivered is wrapped as StreamInterruptedError
// so callers can recognize partial delivery.
func (c *Client) streamOnce(
	ctx context.Context,
	mdl model.Model,
	contents []model.Content,
	attempt int,
	out chan<- string,
) (*model.TokenUsage, error) {
	respCh, errCh := mdl.Generate(ctx, model.Request{Contents: contents, Stream: true})
	delivered := false
	var usage *model.TokenUsage

	fail := func(err error) error {
		if delivered {
			return &StreamInterruptedError{Attempt: attempt, Err: err}
		}
		return err
	}

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, fail(ctx.Err())

		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				// Final aggregate; fragments were already forwarded, only
				// the usage accounting is kept.
				usage = resp.Usage
				continue
			}
			text := resp.Content.Text()
			if text == "" {
				continue
			}
			select {
			case out <- text:
				delivered = true
			case <-ctx.Done():
				return nil, fail(ctx.Err())
			}

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, fail(err)
			}
		}
	}

	return usage, nil
}
