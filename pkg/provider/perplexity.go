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

// PerplexityClient calls Perplexity's OpenAI-compatible chat completions
// endpoint; used for the briefer role, which leans on Perplexity's built-in
// web search rather than a bare model.
type PerplexityClient struct {
	apiKey   string
	endpoint string
	httpc    *http.Client
	healthy  atomic.Bool
}

func NewPerplexityClient(apiKey string) *PerplexityClient {
	c := &PerplexityClient{
		apiKey:   apiKey,
		endpoint: "https://api.perplexity.ai/chat/completions",
		httpc:    sharedhttp.NewClient(sharedhttp.LLMClientConfig(30 * time.Second)),
	}
	c.healthy.Store(true)
	return c
}

func (c *PerplexityClient) WithEndpoint(url string) *PerplexityClient {
	c.endpoint = url
	return c
}

func (c *PerplexityClient) Name() string { return "perplexity" }

func (c *PerplexityClient) IsHealthy() bool { return c.healthy.Load() }

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model    string              `json:"model"`
	Messages []perplexityMessage `json:"messages"`
}

type perplexityResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message perplexityMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
	Usage     struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *PerplexityClient) Call(ctx context.Context, req Request) (Response, error) {
	body := perplexityRequest{
		Model: req.Model,
		Messages: []perplexityMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("perplexity: request encoding failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Response{}, fmt.Errorf("perplexity: request construction failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		c.healthy.Store(false)
		return Response{}, fmt.Errorf("perplexity: communication failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("perplexity: response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.healthy.Store(resp.StatusCode < 500)
		return Response{}, &StatusError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("perplexity: status %d: %s", resp.StatusCode, string(raw)),
		}
	}
	c.healthy.Store(true)

	var decoded perplexityResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Response{}, fmt.Errorf("perplexity: response parsing failed: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}

	text := decoded.Choices[0].Message.Content
	if len(decoded.Citations) > 0 {
		text += "\n\nSources:\n"
		for _, cite := range decoded.Citations {
			text += "- " + cite + "\n"
		}
	}

	out := Response{
		Text:     text,
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
