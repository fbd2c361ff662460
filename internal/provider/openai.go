package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// newOpenAIClient builds a go-openai client for an OpenAI-compatible vendor.
// Vendors are configured with the API root, but a full endpoint URL is
// accepted too.
func newOpenAIClient(apiKey, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		baseURL = strings.TrimRight(baseURL, "/")
		baseURL = strings.TrimSuffix(baseURL, "/chat/completions")
		baseURL = strings.TrimSuffix(baseURL, "/completions")
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// chatGenerator calls a chat-completion endpoint with a single user message.
type chatGenerator struct {
	client *openai.Client
}

func (g *chatGenerator) generate(ctx context.Context, prompt string, params Params) (Result, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
	if err != nil {
		return Result{}, err
	}

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return Result{}, fmt.Errorf("%w: empty message content", ErrMalformedResponse)
	}
	return Text(content), nil
}

// completionGenerator calls a legacy text-completion endpoint.
type completionGenerator struct {
	client *openai.Client
}

func (g *completionGenerator) generate(ctx context.Context, prompt string, params Params) (Result, error) {
	resp, err := g.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       params.Model,
		Prompt:      prompt,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
	if err != nil {
		return Result{}, err
	}

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}
	text := resp.Choices[0].Text
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: empty completion text", ErrMalformedResponse)
	}
	return Text(text), nil
}
