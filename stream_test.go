package modelgate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/modelgate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures structured events for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	msg  string
	args []any
}

func (r *recordingLogger) log(msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{msg: msg, args: args})
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.log(msg, args...) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.log(msg, args...) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.log(msg, args...) }
func (r *recordingLogger) Error(msg string, args ...any) { r.log(msg, args...) }

func (r *recordingLogger) find(msg string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.msg == msg {
			return e, true
		}
	}
	return recordedEvent{}, false
}

// partialTexts builds partial responses for the given fragments followed by a
// final aggregate.
func partialTexts(fragments ...string) []model.Response {
	out := make([]model.Response, 0, len(fragments)+1)
	var full string
	for _, f := range fragments {
		full += f
		out = append(out, model.Response{
			Partial: true,
			Content: model.NewTextContent("assistant", f),
		})
	}
	out = append(out, model.Response{
		Partial:      false,
		Content:      model.NewTextContent("assistant", full),
		FinishReason: "stop",
	})
	return out
}

func collectStream(t *testing.T, tokens <-chan string, errs <-chan error) ([]string, error) {
	t.Helper()
	var got []string
	for token := range tokens {
		got = append(got, token)
	}
	select {
	case err := <-errs:
		return got, err
	case <-time.After(5 * time.Second):
		t.Fatal("error channel not closed")
		return nil, nil
	}
}

func TestClient_CallStream_SuppressesEmptyFragments(t *testing.T) {
	stub := &stubModel{script: func(_ int, _ model.Request) ([]model.Response, error) {
		return partialTexts("a", "", "b"), nil
	}}

	tokens, errs := newTestClient(stub).CallStream(context.Background(), "go")
	got, err := collectStream(t, tokens, errs)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestClient_CallStream_IgnoresFinalAggregate(t *testing.T) {
	stub := &stubModel{script: func(_ int, _ model.Request) ([]model.Response, error) {
		return partialTexts("hel", "lo"), nil
	}}

	tokens, errs := newTestClient(stub).CallStream(context.Background(), "go")
	got, err := collectStream(t, tokens, errs)

	require.NoError(t, err)
	assert.Equal(t, []string{"hel", "lo"}, got, "final aggregate response is not re-delivered")
}

func TestClient_CallStream_RequestsStreamingMode(t *testing.T) {
	var captured model.Request
	stub := &stubModel{script: func(_ int, req model.Request) ([]model.Response, error) {
		captured = req
		return partialTexts("x"), nil
	}}

	tokens, errs := newTestClient(stub).CallStream(context.Background(), "go")
	_, err := collectStream(t, tokens, errs)

	require.NoError(t, err)
	assert.True(t, captured.Stream)
	require.Len(t, captured.Contents, 2)
	assert.Equal(t, "system", captured.Contents[0].Role)
	assert.Equal(t, "go", captured.Contents[1].Text())
}

func TestClient_CallStream_MidStreamRetryDeliversDuplicatePrefix(t *testing.T) {
	stub := &stubModel{script: func(attempt int, _ model.Request) ([]model.Response, error) {
		if attempt == 1 {
			// One fragment, then the stream breaks.
			return []model.Response{{
				Partial: true,
				Content: model.NewTextContent("assistant", "a"),
			}}, fmt.Errorf("connection reset")
		}
		return partialTexts("a", "b"), nil
	}}

	tokens, errs := newTestClient(stub).CallStream(context.Background(), "go")
	got, err := collectStream(t, tokens, errs)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "b"}, got, "re-opened stream re-delivers the prefix")
	assert.Equal(t, 2, stub.generations())
}

func TestClient_CallStream_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	stub := &stubModel{script: func(attempt int, _ model.Request) ([]model.Response, error) {
		return nil, fmt.Errorf("open failed %d", attempt)
	}}

	tokens, errs := newTestClient(stub).CallStream(context.Background(), "go")
	got, err := collectStream(t, tokens, errs)

	assert.Empty(t, got)
	require.Error(t, err)
	assert.EqualError(t, err, "open failed 3")
	assert.Equal(t, 3, stub.generations())
}

func TestClient_CallStream_MidStreamErrorWrappedAsInterruption(t *testing.T) {
	stub := &stubModel{script: func(_ int, _ model.Request) ([]model.Response, error) {
		return []model.Response{{
			Partial: true,
			Content: model.NewTextContent("assistant", "a"),
		}}, fmt.Errorf("connection reset")
	}}

	tokens, errs := newTestClient(stub).CallStream(context.Background(), "go")
	_, err := collectStream(t, tokens, errs)

	var interrupted *StreamInterruptedError
	require.ErrorAs(t, err, &interrupted)
	assert.EqualError(t, interrupted.Err, "connection reset")
}

func TestClient_CallStream_BackoffScheduleDoubles(t *testing.T) {
	var slept []time.Duration
	stub := &stubModel{script: func(attempt int, _ model.Request) ([]model.Response, error) {
		return nil, fmt.Errorf("open failed %d", attempt)
	}}

	client := newTestClient(stub, func(o *Options) {
		o.BaseDelay = 500 * time.Millisecond
		o.Sleep = func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}
	})
	tokens, errs := client.CallStream(context.Background(), "go")
	_, err := collectStream(t, tokens, errs)

	require.Error(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, slept)
	assert.Equal(t, 3, stub.generations())
}

func TestClient_CallStream_MissingCredentialNotRetried(t *testing.T) {
	factoryCalls := 0
	reg := NewRegistry()
	reg.Register("counted-", func(_ FactoryConfig) (model.Model, error) {
		factoryCalls++
		return nil, &MissingCredentialError{Provider: "counted", EnvVar: "COUNTED_API_KEY"}
	})

	client := New(func(o *Options) {
		o.Registry = reg
		o.BaseDelay = time.Millisecond
	})
	tokens, errs := client.CallStream(context.Background(), "hi", func(o *StreamOptions) {
		o.Model = "counted-model"
	})
	got, err := collectStream(t, tokens, errs)

	assert.Empty(t, got)
	var credErr *MissingCredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, 1, factoryCalls, "configuration errors surface before the retry loop")
}

func TestClient_CallStream_LogsCompletionWithUsage(t *testing.T) {
	stub := &stubModel{script: func(_ int, _ model.Request) ([]model.Response, error) {
		responses := partialTexts("hi")
		responses[len(responses)-1].Usage = &model.TokenUsage{
			PromptTokens:     3,
			CompletionTokens: 2,
			TotalTokens:      5,
		}
		return responses, nil
	}}

	logger := &recordingLogger{}
	client := newTestClient(stub, func(o *Options) { o.Logger = logger })
	tokens, errs := client.CallStream(context.Background(), "go")
	_, err := collectStream(t, tokens, errs)

	require.NoError(t, err)
	event, ok := logger.find("Model stream complete")
	require.True(t, ok, "completion event logged")
	assert.Contains(t, event.args, "token_count")
	assert.Contains(t, event.args, 5)
}

func TestClient_CallStream_MissingGoogleKey(t *testing.T) {
	t.Setenv(EnvGoogleAPIKey, "")

	client := New(func(o *Options) { o.BaseDelay = time.Millisecond })
	tokens, errs := client.CallStream(context.Background(), "go", func(o *StreamOptions) {
		o.Model = "gemini-2.0-flash"
	})
	got, err := collectStream(t, tokens, errs)

	assert.Empty(t, got)
	var credErr *MissingCredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, EnvGoogleAPIKey, credErr.EnvVar)
}
