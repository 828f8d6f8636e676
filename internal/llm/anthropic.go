package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-3-5-sonnet-20241022"
	defaultAnthropicMaxTokens = 4096
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
	apiKey string
}

// NewAnthropicClient creates a new Anthropic client. An empty apiKey is
// allowed; every request must then supply its own credential.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		apiKey: apiKey,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}
}

// requestOptions binds the request's credential override, if any.
func (c *AnthropicClient) requestOptions(req *CompletionRequest) ([]option.RequestOption, error) {
	if req.APIKey != "" {
		return []option.RequestOption{option.WithAPIKey(req.APIKey)}, nil
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return nil, nil
}

// params converts a request to Anthropic format. System turns are lifted into
// the system prompt since the Messages API only accepts user/assistant turns.
func (c *AnthropicClient) params(req *CompletionRequest) (anthropic.MessageNewParams, string) {
	model := req.Model
	if model == "" || !strings.HasPrefix(model, "claude") {
		model = defaultAnthropicModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		block := anthropic.TextBlockParam{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(msg.Content),
		}
		if msg.Role == "system" {
			system = append(system, block)
			continue
		}
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{block}),
		})
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Messages:    anthropic.F(messages),
		Temperature: anthropic.F(req.Temperature),
	}
	if len(system) > 0 {
		params.System = anthropic.F(system)
	}
	return params, model
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	opts, err := c.requestOptions(req)
	if err != nil {
		return nil, err
	}
	params, _ := c.params(req)

	resp, err := c.client.Messages.New(ctx, params, opts...)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	opts, err := c.requestOptions(req)
	if err != nil {
		return nil, err
	}
	params, model := c.params(req)

	stream := c.client.Messages.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	var content strings.Builder
	var tokensIn, tokensOut int
	var stopReason string
	index := 0

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeMessageStart:
			tokensIn = int(event.Message.Usage.InputTokens)
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta)
			if !ok || delta.Text == "" {
				continue
			}
			content.WriteString(delta.Text)
			if err := callback(delta.Text, index); err != nil {
				return nil, err
			}
			index++
		case anthropic.MessageStreamEventTypeMessageDelta:
			if delta, ok := event.Delta.(anthropic.MessageDeltaEventDelta); ok {
				stopReason = string(delta.StopReason)
			}
			tokensOut = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content:    content.String(),
		Model:      model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
