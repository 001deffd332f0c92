package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/require"
)

type stubBedrockClient struct {
	lastInput *bedrockruntime.ConverseInput
	out       *bedrockruntime.ConverseOutput
	err       error
}

func (s *stubBedrockClient) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastInput = params
	return s.out, s.err
}

func TestBedrockProvider_Generate_TextResponse(t *testing.T) {
	t.Parallel()

	stub := &stubBedrockClient{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "All stations, this is Overlord, acknowledged, over."}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
	}}
	p, err := NewBedrockProvider(stub, BedrockOptions{DefaultModel: "anthropic.claude-3-5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "hi"}}}}})
	require.NoError(t, err)
	require.Equal(t, StopEndTurn, resp.StopReason)
	require.Equal(t, "All stations, this is Overlord, acknowledged, over.", resp.Text())
}

func TestBedrockProvider_Generate_ToolUse(t *testing.T) {
	t.Parallel()

	stub := &stubBedrockClient{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
				ToolUseId: strPtr("tool-1"),
				Name:      strPtr("search_web"),
				Input:     document.NewLazyDocument(&map[string]any{"q": "status"}),
			}}},
		}},
		StopReason: brtypes.StopReasonToolUse,
	}}
	p, err := NewBedrockProvider(stub, BedrockOptions{DefaultModel: "anthropic.claude-3-5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "search"}}}},
		Tools:    []ToolSpec{{Name: "search_web"}},
	})
	require.NoError(t, err)
	require.Equal(t, StopToolUse, resp.StopReason)
	calls := resp.ToolCalls()
	require.Len(t, calls, 1)
	require.Equal(t, "search_web", calls[0].ToolName)
	require.Equal(t, "tool-1", calls[0].ToolUseID)
}

func TestBedrockProvider_Generate_ThrottledWrapsSentinel(t *testing.T) {
	t.Parallel()

	respErr := &smithyhttp.ResponseError{Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}}
	stub := &stubBedrockClient{err: respErr}
	p, err := NewBedrockProvider(stub, BedrockOptions{DefaultModel: "anthropic.claude-3-5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "hi"}}}}})
	require.True(t, errors.Is(err, ErrRateLimited))
}

func strPtr(s string) *string { return &s }
