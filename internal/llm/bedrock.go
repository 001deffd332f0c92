package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// BedrockRuntimeClient mirrors the subset of the AWS Bedrock runtime client
// used by BedrockProvider, satisfied by *bedrockruntime.Client.
type BedrockRuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockOptions configures the Bedrock adapter.
type BedrockOptions struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float32
}

// BedrockProvider implements Provider on top of the AWS Bedrock Converse
// API.
type BedrockProvider struct {
	runtime      BedrockRuntimeClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// NewBedrockProvider builds an adapter from an existing runtime client.
func NewBedrockProvider(runtime BedrockRuntimeClient, opts BedrockOptions) (*BedrockProvider, error) {
	if runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &BedrockProvider{runtime: runtime, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

func (p *BedrockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	input, err := p.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := p.runtime.Converse(ctx, input)
	if err != nil {
		if isBedrockThrottled(err) {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateBedrockResponse(out)
}

func (p *BedrockProvider) prepareRequest(req Request) (*bedrockruntime.ConverseInput, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}

	msgs := make([]brtypes.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		blocks, err := encodeBedrockContent(m.Content)
		if err != nil {
			return nil, err
		}
		role := brtypes.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		msgs = append(msgs, brtypes.Message{Role: role, Content: blocks})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  &modelID,
		Messages: msgs,
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		mt := int32(maxTokens)
		input.InferenceConfig = &brtypes.InferenceConfiguration{MaxTokens: &mt}
	}
	if len(req.Tools) > 0 {
		tc := &brtypes.ToolConfiguration{}
		for _, t := range req.Tools {
			schemaDoc := document.NewLazyDocument(toolSchemaDoc(t.InputSchema))
			tc.Tools = append(tc.Tools, &brtypes.ToolMemberToolSpec{
				Value: brtypes.ToolSpecification{
					Name:        &t.Name,
					Description: &t.Description,
					InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: schemaDoc},
				},
			})
		}
		input.ToolConfig = tc
	}
	return input, nil
}

func toolSchemaDoc(schema map[string]any) any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return schema
}

func encodeBedrockContent(blocks []ContentBlock) ([]brtypes.ContentBlock, error) {
	out := make([]brtypes.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, &brtypes.ContentBlockMemberText{Value: b.Text})
		case "tool_use":
			var input any
			if len(b.ToolInput) > 0 {
				if err := json.Unmarshal(b.ToolInput, &input); err != nil {
					return nil, fmt.Errorf("bedrock: decode tool_use input: %w", err)
				}
			}
			out = append(out, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
				ToolUseId: &b.ToolUseID,
				Name:      &b.ToolName,
				Input:     document.NewLazyDocument(input),
			}})
		case "tool_result":
			out = append(out, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
				ToolUseId: &b.ToolUseID,
				Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: b.ToolResultContent}},
				Status:    toolResultStatus(b.ToolResultIsError),
			}})
		}
	}
	return out, nil
}

func toolResultStatus(isError bool) brtypes.ToolResultStatus {
	if isError {
		return brtypes.ToolResultStatusError
	}
	return brtypes.ToolResultStatusSuccess
}

func translateBedrockResponse(out *bedrockruntime.ConverseOutput) (*Response, error) {
	if out == nil || out.Output == nil {
		return nil, errors.New("bedrock: empty converse output")
	}
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock: unexpected converse output shape")
	}
	resp := &Response{}
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Content = append(resp.Content, ContentBlock{Type: "text", Text: b.Value})
		case *brtypes.ContentBlockMemberToolUse:
			input, _ := json.Marshal(b.Value.Input)
			resp.Content = append(resp.Content, ContentBlock{
				Type:      "tool_use",
				ToolUseID: *b.Value.ToolUseId,
				ToolName:  *b.Value.Name,
				ToolInput: input,
			})
		}
	}
	switch out.StopReason {
	case brtypes.StopReasonToolUse:
		resp.StopReason = StopToolUse
	case brtypes.StopReasonMaxTokens:
		resp.StopReason = StopMaxTok
	case brtypes.StopReasonEndTurn, brtypes.StopReasonStopSequence:
		resp.StopReason = StopEndTurn
	default:
		resp.StopReason = StopOther
	}
	return resp, nil
}

func isBedrockThrottled(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 429
	}
	return false
}
