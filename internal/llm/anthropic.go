package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicMessagesClient captures the subset of the Anthropic SDK client
// used by AnthropicProvider. Satisfied by *sdk.MessageService, so tests can
// substitute a fake without a mocking framework.
type AnthropicMessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicOptions configures the Anthropic adapter.
type AnthropicOptions struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// AnthropicProvider implements Provider on top of the Anthropic Claude
// Messages API.
type AnthropicProvider struct {
	msg          AnthropicMessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// NewAnthropicProvider builds an adapter from an existing Messages client.
func NewAnthropicProvider(msg AnthropicMessagesClient, opts AnthropicOptions) (*AnthropicProvider, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &AnthropicProvider{msg: msg, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewAnthropicProviderFromAPIKey constructs a provider using the default
// Anthropic HTTP client authenticated with apiKey. An empty apiKey is an
// error.
func NewAnthropicProviderFromAPIKey(apiKey, defaultModel string) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicProvider(&c.Messages, AnthropicOptions{DefaultModel: defaultModel})
}

// Generate issues a Messages.New request and translates the response back
// into the provider-agnostic Response shape.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	params, err := p.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := p.msg.New(ctx, *params)
	if err != nil {
		if isAnthropicRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateAnthropicResponse(msg)
}

func (p *AnthropicProvider) prepareRequest(req Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(p.maxTokens)
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	msgs := make([]sdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks, err := encodeAnthropicContent(m.Content)
		if err != nil {
			return nil, err
		}
		switch m.Role {
		case RoleAssistant:
			msgs = append(msgs, sdk.NewAssistantMessage(blocks...))
		default:
			msgs = append(msgs, sdk.NewUserMessage(blocks...))
		}
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: schemaProperties(t.InputSchema),
				},
			},
		})
	}
	return params, nil
}

func schemaProperties(schema map[string]any) any {
	if schema == nil {
		return map[string]any{}
	}
	if props, ok := schema["properties"]; ok {
		return props
	}
	return schema
}

func encodeAnthropicContent(blocks []ContentBlock) ([]sdk.ContentBlockParamUnion, error) {
	out := make([]sdk.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, sdk.NewTextBlock(b.Text))
		case "tool_use":
			var input any
			if len(b.ToolInput) > 0 {
				if err := json.Unmarshal(b.ToolInput, &input); err != nil {
					return nil, fmt.Errorf("anthropic: decode tool_use input: %w", err)
				}
			}
			out = append(out, sdk.NewToolUseBlock(b.ToolUseID, input, b.ToolName))
		case "tool_result":
			out = append(out, sdk.NewToolResultBlock(b.ToolUseID, b.ToolResultContent, b.ToolResultIsError))
		}
	}
	return out, nil
}

func translateAnthropicResponse(msg *sdk.Message) (*Response, error) {
	if msg == nil {
		return nil, errors.New("anthropic: response message is nil")
	}
	resp := &Response{}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: block.Text})
		case "tool_use":
			resp.Content = append(resp.Content, ContentBlock{
				Type:      "tool_use",
				ToolUseID: block.ID,
				ToolName:  block.Name,
				ToolInput: json.RawMessage(block.Input),
			})
		}
	}
	switch msg.StopReason {
	case "tool_use":
		resp.StopReason = StopToolUse
	case "end_turn", "stop_sequence":
		resp.StopReason = StopEndTurn
	case "max_tokens":
		resp.StopReason = StopMaxTok
	default:
		resp.StopReason = StopOther
	}
	return resp, nil
}

func isAnthropicRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
