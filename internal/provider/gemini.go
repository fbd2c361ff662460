package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// geminiGenerator calls Gemini's GenerateContent with a single user turn.
type geminiGenerator struct {
	client *genai.Client
}

func newGeminiGenerator(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (*geminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &geminiGenerator{client: client}, nil
}

func (g *geminiGenerator) generate(ctx context.Context, prompt string, params Params) (Result, error) {
	cfg := &genai.GenerateContentConfig{}
	if params.Temperature > 0 {
		temperature := params.Temperature
		cfg.Temperature = &temperature
	}
	if params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, params.Model, genai.Text(prompt), cfg)
	if err != nil {
		return Result{}, err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: empty response from gemini", ErrMalformedResponse)
	}
	return Text(text), nil
}
