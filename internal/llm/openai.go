package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIChatClient captures the subset of the OpenAI SDK client used by
// OpenAIProvider, satisfied by the real client's Chat.Completions service.
type OpenAIChatClient interface {
	New(ctx context.Context, body oai.ChatCompletionNewParams, opts ...option.RequestOption) (*oai.ChatCompletion, error)
}

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// OpenAIProvider implements Provider on top of the OpenAI Chat Completions
// API.
type OpenAIProvider struct {
	chat         OpenAIChatClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// NewOpenAIProvider builds an adapter from an existing chat-completions
// client.
func NewOpenAIProvider(chat OpenAIChatClient, opts OpenAIOptions) (*OpenAIProvider, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &OpenAIProvider{chat: chat, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewOpenAIProviderFromAPIKey constructs a provider using the default OpenAI
// HTTP client authenticated with apiKey. An empty apiKey is an error.
func NewOpenAIProviderFromAPIKey(apiKey, defaultModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	c := oai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIProvider(&c.Chat.Completions, OpenAIOptions{DefaultModel: defaultModel})
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	params, err := p.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	completion, err := p.chat.New(ctx, *params)
	if err != nil {
		if isOpenAIRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai chat.completions.new: %w", err)
	}
	return translateOpenAIResponse(completion)
}

func (p *OpenAIProvider) prepareRequest(req Request) (*oai.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}

	var msgs []oai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, oai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		for _, b := range m.Content {
			switch {
			case b.Type == "text" && m.Role == RoleAssistant:
				msgs = append(msgs, oai.AssistantMessage(b.Text))
			case b.Type == "text":
				msgs = append(msgs, oai.UserMessage(b.Text))
			case b.Type == "tool_result":
				msgs = append(msgs, oai.ToolMessage(b.ToolResultContent, b.ToolUseID))
			}
		}
	}

	params := &oai.ChatCompletionNewParams{
		Model:    oai.ChatModel(modelID),
		Messages: msgs,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = oai.Int(int64(maxTokens))
	}
	if req.Temperature != 0 {
		params.Temperature = oai.Float(req.Temperature)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: oai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: oai.String(t.Description),
				Parameters:  t.InputSchema,
			},
		})
	}
	return params, nil
}

func translateOpenAIResponse(c *oai.ChatCompletion) (*Response, error) {
	if c == nil || len(c.Choices) == 0 {
		return nil, errors.New("openai: empty completion")
	}
	choice := c.Choices[0]
	resp := &Response{}
	if choice.Message.Content != "" {
		resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.Content = append(resp.Content, ContentBlock{
			Type:      "tool_use",
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: json.RawMessage(tc.Function.Arguments),
		})
	}
	if len(choice.Message.ToolCalls) > 0 {
		resp.StopReason = StopToolUse
	} else {
		switch choice.FinishReason {
		case "length":
			resp.StopReason = StopMaxTok
		case "stop":
			resp.StopReason = StopEndTurn
		default:
			resp.StopReason = StopOther
		}
	}
	return resp, nil
}

func isOpenAIRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
