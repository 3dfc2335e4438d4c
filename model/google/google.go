// Package google provides a model wrapper for the Google Gemini API using the
// official Gen AI Go SDK (streaming + tool calling).
package google

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/modelgate/model"
	"google.golang.org/genai"
)

// Options configures the Google model adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int32
	Streaming   bool
	APIKey      string
}

// Model wraps the Gemini API behind the generic model.Model interface.
//
// The underlying genai client requires a context for construction, so it is
// created lazily on the first Generate call.
type Model struct {
	opts Options
}

// NewModel creates a new Google Gemini model.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  m.opts.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			errCh <- fmt.Errorf("google client: %w", err)
			return
		}

		contents := buildContents(req.Contents)
		config := m.buildConfig(req)

		if req.Stream {
			m.handleStreaming(ctx, client, contents, config, out, errCh)
			return
		}

		resp, err := client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		if err != nil {
			errCh <- fmt.Errorf("google api error: %w", err)
			return
		}
		out <- finalResponse(resp)
	}()

	return out, errCh
}

// handleStreaming iterates the server stream, forwarding text deltas and a
// final response assembled from the accumulated fragments.
func (m *Model) handleStreaming(
	ctx context.Context,
	client *genai.Client,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- model.Response,
	errCh chan<- error,
) {
	var parts []model.Part
	var text string
	finishReason := "stop"
	var usage *model.TokenUsage

	for resp, err := range client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
		if err != nil {
			errCh <- fmt.Errorf("google streaming error: %w", err)
			return
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		cand := resp.Candidates[0]
		for _, p := range cand.Content.Parts {
			switch {
			case p.Text != "":
				text += p.Text
				out <- model.Response{
					Partial: true,
					Content: model.NewTextContent("assistant", p.Text),
				}
			case p.FunctionCall != nil:
				parts = append(parts, functionCallPart(p.FunctionCall))
			}
		}
		if cand.FinishReason != "" {
			finishReason = string(cand.FinishReason)
		}
		if u := resp.UsageMetadata; u != nil {
			usage = tokenUsage(u)
		}
	}

	if text != "" {
		parts = append([]model.Part{model.TextPart{Text: text}}, parts...)
	}
	out <- model.Response{
		Partial:      false,
		Content:      model.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason,
		Usage:        usage,
	}
}

// buildConfig assembles generation parameters including system instruction and tools.
func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(m.opts.Temperature)),
		MaxOutputTokens: m.opts.MaxTokens,
	}

	var system string
	for _, c := range req.Contents {
		if c.Role == "system" {
			system += c.Text()
		}
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, tool := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 tool.Function.Name,
				Description:          tool.Function.Description,
				ParametersJsonSchema: tool.Function.Parameters,
			}
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return config
}

// buildContents converts normalized contents to the Gemini format. System
// messages are handled via the config, tool responses become function
// response parts.
func buildContents(contents []model.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		if c.Role == "system" {
			continue
		}

		var parts []*genai.Part
		for _, p := range c.Parts {
			switch part := p.(type) {
			case model.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case model.FunctionCallPart:
				args := map[string]any{}
				if part.FunctionCall.Arguments != "" {
					_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				}})
			case model.FunctionResponsePart:
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResponse.ID,
					Name:     part.FunctionResponse.Name,
					Response: map[string]any{"result": part.FunctionResponse.Response},
				}})
			}
		}
		if len(parts) == 0 {
			continue
		}

		role := genai.RoleUser
		if c.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	return out
}

// finalResponse converts a complete Gemini response into a model.Response.
func finalResponse(resp *genai.GenerateContentResponse) model.Response {
	var parts []model.Part
	finishReason := "stop"

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			for _, p := range cand.Content.Parts {
				switch {
				case p.Text != "":
					parts = append(parts, model.TextPart{Text: p.Text})
				case p.FunctionCall != nil:
					parts = append(parts, functionCallPart(p.FunctionCall))
				}
			}
		}
		if cand.FinishReason != "" {
			finishReason = string(cand.FinishReason)
		}
	}

	var usage *model.TokenUsage
	if u := resp.UsageMetadata; u != nil {
		usage = tokenUsage(u)
	}

	return model.Response{
		Partial:      false,
		Content:      model.Content{Role: "assistant", Parts: parts},
		FinishReason: finishReason,
		Usage:        usage,
	}
}

func functionCallPart(fc *genai.FunctionCall) model.Part {
	args := ""
	if fc.Args != nil {
		if argsBytes, err := json.Marshal(fc.Args); err == nil {
			args = string(argsBytes)
		}
	}
	return model.FunctionCallPart{FunctionCall: model.FunctionCall{
		ID:        fc.ID,
		Name:      fc.Name,
		Arguments: args,
	}}
}

func tokenUsage(u *genai.GenerateContentResponseUsageMetadata) *model.TokenUsage {
	return &model.TokenUsage{
		PromptTokens:     int(u.PromptTokenCount),
		CompletionTokens: int(u.CandidatesTokenCount),
		TotalTokens:      int(u.TotalTokenCount),
	}
}

// Info returns metadata describing this Google model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "google",
		SupportsTools: true,
		Streaming:     m.opts.Streaming,
	}
}
