package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient calls the Anthropic Messages API directly via the
// official SDK.
type AnthropicClient struct {
	client  anthropic.Client
	healthy atomic.Bool
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	c := &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
	c.healthy.Store(true)
	return c
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) IsHealthy() bool { return c.healthy.Load() }

func (c *AnthropicClient) Call(ctx context.Context, req Request) (Response, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	})
	if err != nil {
		c.healthy.Store(false)
		return Response{}, fmt.Errorf("anthropic: communication failed: %w", err)
	}
	c.healthy.Store(true)

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	out := Response{
		Text:     text,
		Model:    string(msg.Model),
		Provider: c.Name(),
		Usage: TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	if err := ValidateResponse(req, out); err != nil {
		return Response{}, err
	}
	return out, nil
}
