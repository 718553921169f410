package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	sharedhttp "github.com/vecto-pilot/pilot-core/pkg/shared/http"
)

// OpenAIClient talks to the OpenAI chat completions endpoint over plain
// HTTP; no official SDK is wired for this provider, matching the teacher's
// own AI-service client, which is a hand-rolled net/http caller rather than
// a generated client.
type OpenAIClient struct {
	apiKey   string
	endpoint string
	httpc    *http.Client
	healthy  atomic.Bool
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	c := &OpenAIClient{
		apiKey:   apiKey,
		endpoint: "https://api.openai.com/v1/chat/completions",
		httpc:    sharedhttp.NewClient(sharedhttp.LLMClientConfig(30 * time.Second)),
	}
	c.healthy.Store(true)
	return c
}

// WithEndpoint overrides the target URL; used by tests to point at an
// httptest server.
func (c *OpenAIClient) WithEndpoint(url string) *OpenAIClient {
	c.endpoint = url
	return c
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) IsHealthy() bool { return c.healthy.Load() }

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type openAIChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Call(ctx context.Context, req Request) (Response, error) {
	body := openAIChatRequest{
		Model: req.Model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("openai: request encoding failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Response{}, fmt.Errorf("openai: request construction failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.healthy.Store(false)
		return Response{}, fmt.Errorf("openai: communication failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("openai: response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.healthy.Store(resp.StatusCode < 500)
		return Response{}, &StatusError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(raw)),
		}
	}
	c.healthy.Store(true)

	var decoded openAIChatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Response{}, fmt.Errorf("openai: response parsing failed: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}

	out := Response{
		Text:     decoded.Choices[0].Message.Content,
		Model:    decoded.Model,
		Provider: c.Name(),
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
		},
	}
	if err := ValidateResponse(req, out); err != nil {
		return Response{}, err
	}
	return out, nil
}
