package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var responses []Response
	for r := range respCh {
		responses = append(responses, r)
	}
	return responses, <-errCh
}

func TestMockModel_CannedResponse(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.AddResponse("ping", "pong")

	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: []Content{NewTextContent("user", "ping")},
	})
	responses, err := drain(t, respCh, errCh)

	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.False(t, responses[0].Partial)
	assert.Equal(t, "pong", responses[0].Content.Text())
	assert.Equal(t, "stop", responses[0].FinishReason)
}

func TestMockModel_StreamingEmitsPartialsThenFinal(t *testing.T) {
	m := NewMockModel("test-model", "mock")
	m.AddResponse("ping", "ab")

	respCh, errCh := m.Generate(context.Background(), Request{
		Contents: []Content{NewTextContent("user", "ping")},
		Stream:   true,
	})
	responses, err := drain(t, respCh, errCh)

	require.NoError(t, err)
	require.Len(t, responses, 3)
	assert.True(t, responses[0].Partial)
	assert.Equal(t, "a", responses[0].Content.Text())
	assert.True(t, responses[1].Partial)
	assert.Equal(t, "b", responses[1].Content.Text())
	assert.False(t, responses[2].Partial)
	assert.Equal(t, "ab", responses[2].Content.Text())
}

func TestMockModel_NoContentsErrors(t *testing.T) {
	m := NewMockModel("test-model", "mock")

	respCh, errCh := m.Generate(context.Background(), Request{})
	responses, err := drain(t, respCh, errCh)

	assert.Empty(t, responses)
	assert.Error(t, err)
}

func TestContent_Text(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "hello "},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "tool"}},
		TextPart{Text: "world"},
	}}
	assert.Equal(t, "hello world", c.Text())
}

func TestContent_FunctionCalls(t *testing.T) {
	c := Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "checking"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "a"}},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "2", Name: "b"}},
	}}

	calls := c.FunctionCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Name)
	assert.Equal(t, "b", calls[1].Name)
}

func TestToolFromStruct(t *testing.T) {
	type Args struct {
		City string `json:"city" description:"City name"`
	}

	tool := ToolFromStruct("get_weather", "Get the weather", Args{})

	assert.Equal(t, "function", tool.Type)
	assert.Equal(t, "get_weather", tool.Function.Name)
	props, ok := tool.Function.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")
}
