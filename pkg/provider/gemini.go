package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient calls the Gemini API directly via Google's API-key-backed
// client (as opposed to VertexClient, which authenticates through GCP
// project/IAM).
type GeminiClient struct {
	client  *genai.Client
	healthy atomic.Bool
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: client construction failed: %w", err)
	}
	c := &GeminiClient{client: client}
	c.healthy.Store(true)
	return c, nil
}

func (c *GeminiClient) Name() string { return "google_gemini" }

func (c *GeminiClient) IsHealthy() bool { return c.healthy.Load() }

func (c *GeminiClient) Close() error { return c.client.Close() }

func (c *GeminiClient) Call(ctx context.Context, req Request) (Response, error) {
	model := c.client.GenerativeModel(req.Model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.MaxOutputTokens = &maxTokens
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		model.Temperature = &temp
	}

	result, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		c.healthy.Store(false)
		return Response{}, fmt.Errorf("gemini: communication failed: %w", err)
	}
	c.healthy.Store(true)

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return Response{}, ErrEmptyResponse
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	out := Response{
		Text:     text,
		Model:    req.Model,
		Provider: c.Name(),
	}
	if result.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	if err := ValidateResponse(req, out); err != nil {
		return Response{}, err
	}
	return out, nil
}
