package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"cloud.google.com/go/vertexai/genai"
)

// VertexClient calls Gemini through Vertex AI's project/location-scoped
// endpoint, authenticating via Application Default Credentials rather than
// an API key — the enterprise-account counterpart to GeminiClient.
type VertexClient struct {
	client  *genai.Client
	healthy atomic.Bool
}

func NewVertexClient(ctx context.Context, projectID, location string) (*VertexClient, error) {
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("vertex: client construction failed: %w", err)
	}
	c := &VertexClient{client: client}
	c.healthy.Store(true)
	return c, nil
}

func (c *VertexClient) Name() string { return "google_vertex" }

func (c *VertexClient) IsHealthy() bool { return c.healthy.Load() }

func (c *VertexClient) Close() error { return c.client.Close() }

func (c *VertexClient) Call(ctx context.Context, req Request) (Response, error) {
	model := c.client.GenerativeModel(req.Model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.MaxOutputTokens = &maxTokens
	}

	result, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		c.healthy.Store(false)
		return Response{}, fmt.Errorf("vertex: communication failed: %w", err)
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

	out := Response{Text: text, Model: req.Model, Provider: c.Name()}
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
