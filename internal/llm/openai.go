package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-3.5-turbo"

// OpenAIClient is the OpenAI LLM client.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *openai.Client

	// CountTokens is used for usage accounting; streaming responses carry none.
	CountTokens TokenCounter
}

// NewOpenAIClient creates a new OpenAI client. An empty apiKey is allowed;
// every request must then supply its own credential.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:      apiKey,
		baseURL:     baseURL,
		CountTokens: CountTokens,
	}
	if apiKey != "" {
		c.client = openai.NewClientWithConfig(c.config(apiKey))
	}
	return c
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Models returns available models.
func (c *OpenAIClient) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"gpt-4",
		"gpt-3.5-turbo",
	}
}

func (c *OpenAIClient) config(apiKey string) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(c.baseURL, "/")
	}
	return cfg
}

// clientFor returns the shared client, or a short-lived one bound to the
// request's own credential.
func (c *OpenAIClient) clientFor(req *CompletionRequest) (*openai.Client, error) {
	if req.APIKey != "" && req.APIKey != c.apiKey {
		return openai.NewClientWithConfig(c.config(req.APIKey)), nil
	}
	if c.client == nil {
		return nil, ErrMissingAPIKey
	}
	return c.client, nil
}

func (c *OpenAIClient) chatRequest(req *CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
}

// Complete sends a completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	client, err := c.clientFor(req)
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateChatCompletion(ctx, c.chatRequest(req))
	if err != nil {
		return nil, err
	}

	var content, stopReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		stopReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request.
func (c *OpenAIClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	client, err := c.clientFor(req)
	if err != nil {
		return nil, err
	}

	chatReq := c.chatRequest(req)
	chatReq.Stream = true

	stream, err := client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content strings.Builder
	var stopReason string
	index := 0

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta != "" {
			content.WriteString(delta)
			if err := callback(delta, index); err != nil {
				return nil, err
			}
			index++
		}
		if response.Choices[0].FinishReason != "" {
			stopReason = string(response.Choices[0].FinishReason)
		}
	}

	text := content.String()
	return &CompletionResponse{
		Content:    text,
		Model:      chatReq.Model,
		TokensIn:   countOrEstimate(c.CountTokens, chatReq.Model, req.Messages),
		TokensOut:  countOrEstimate(c.CountTokens, chatReq.Model, []ChatMessage{{Content: text}}),
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
