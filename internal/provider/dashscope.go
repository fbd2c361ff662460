package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds how much of a failed response is read for the message.
const maxErrorBody = 64 << 10

// dashScopeResponse covers both image synthesis envelopes. Error answers
// carry code and message at the top level.
type dashScopeResponse struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Output    struct {
		// v1 text2image
		Results []struct {
			URL     string `json:"url"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"results"`
		// v2 multimodal generation
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
					Text  string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

// dashScopeClient posts synchronous image synthesis requests and downloads
// the first returned image.
type dashScopeClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	downloader *downloader
}

func (c *dashScopeClient) post(ctx context.Context, body any) (*dashScopeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var envelope dashScopeResponse
		if json.Unmarshal(raw, &envelope) == nil {
			statusErr.Code = envelope.Code
			statusErr.Message = envelope.Message
		}
		if statusErr.Message == "" {
			statusErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, statusErr
	}

	var out dashScopeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Code != "" {
		return nil, &StatusError{StatusCode: resp.StatusCode, Code: out.Code, Message: out.Message}
	}
	return &out, nil
}

// imageV1Generator speaks the text2image synthesis API.
type imageV1Generator struct {
	*dashScopeClient
}

type imageV1Request struct {
	Model string `json:"model"`
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		Size     string  `json:"size,omitempty"`
		Seed     int     `json:"seed,omitempty"`
		Guidance float64 `json:"guidance,omitempty"`
	} `json:"parameters"`
}

func (g *imageV1Generator) generate(ctx context.Context, prompt string, params Params) (Result, error) {
	var body imageV1Request
	body.Model = params.Model
	body.Input.Prompt = prompt
	body.Parameters.Size = params.Size
	body.Parameters.Seed = params.Seed
	body.Parameters.Guidance = params.Guidance

	out, err := g.post(ctx, body)
	if err != nil {
		return Result{}, err
	}

	if len(out.Output.Results) == 0 {
		return Result{}, fmt.Errorf("%w: no results returned", ErrMalformedResponse)
	}
	first := out.Output.Results[0]
	if first.URL == "" {
		if first.Code != "" {
			return Result{}, &StatusError{StatusCode: http.StatusOK, Code: first.Code, Message: first.Message}
		}
		return Result{}, fmt.Errorf("%w: result has no url", ErrMalformedResponse)
	}

	path, err := g.downloader.fetch(ctx, first.URL)
	if err != nil {
		return Result{}, err
	}
	return Artifact(path), nil
}

// imageV2Generator speaks the multimodal generation API.
type imageV2Generator struct {
	*dashScopeClient
}

type imageV2Content struct {
	Text string `json:"text"`
}

type imageV2Message struct {
	Role    string           `json:"role"`
	Content []imageV2Content `json:"content"`
}

type imageV2Request struct {
	Model string `json:"model"`
	Input struct {
		Messages []imageV2Message `json:"messages"`
	} `json:"input"`
	Parameters struct {
		Size           string `json:"size,omitempty"`
		Seed           int    `json:"seed,omitempty"`
		NegativePrompt string `json:"negative_prompt,omitempty"`
	} `json:"parameters"`
}

func (g *imageV2Generator) generate(ctx context.Context, prompt string, params Params) (Result, error) {
	var body imageV2Request
	body.Model = params.Model
	body.Input.Messages = []imageV2Message{
		{Role: "user", Content: []imageV2Content{{Text: prompt}}},
	}
	body.Parameters.Size = params.Size
	body.Parameters.Seed = params.Seed
	body.Parameters.NegativePrompt = params.NegativePrompt

	out, err := g.post(ctx, body)
	if err != nil {
		return Result{}, err
	}

	if len(out.Output.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}
	for _, part := range out.Output.Choices[0].Message.Content {
		if part.Image == "" {
			continue
		}
		path, err := g.downloader.fetch(ctx, part.Image)
		if err != nil {
			return Result{}, err
		}
		return Artifact(path), nil
	}
	return Result{}, fmt.Errorf("%w: no image in response", ErrMalformedResponse)
}
