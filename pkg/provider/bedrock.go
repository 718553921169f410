package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockClient calls Claude models through AWS Bedrock's InvokeModel API,
// giving the router a second, independently-failing route to the same
// model family as AnthropicClient (spec §4.D provider-family isolation).
type BedrockClient struct {
	client  *bedrockruntime.Client
	healthy atomic.Bool
}

// NewBedrockClient loads AWS credentials/region from the standard SDK
// config chain (env vars, shared config, IAM role).
func NewBedrockClient(ctx context.Context, region string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: aws config load failed: %w", err)
	}
	c := &BedrockClient{client: bedrockruntime.NewFromConfig(cfg)}
	c.healthy.Store(true)
	return c, nil
}

func (c *BedrockClient) Name() string { return "anthropic_bedrock" }

func (c *BedrockClient) IsHealthy() bool { return c.healthy.Load() }

type bedrockAnthropicRequest struct {
	AnthropicVersion string                   `json:"anthropic_version"`
	MaxTokens        int                      `json:"max_tokens"`
	System           string                   `json:"system,omitempty"`
	Messages         []bedrockAnthropicMsg    `json:"messages"`
}

type bedrockAnthropicMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *BedrockClient) Call(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	body := bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           req.SystemPrompt,
		Messages:         []bedrockAnthropicMsg{{Role: "user", Content: req.UserPrompt}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("bedrock: request encoding failed: %w", err)
	}

	out, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		c.healthy.Store(false)
		return Response{}, fmt.Errorf("bedrock: communication failed: %w", err)
	}
	c.healthy.Store(true)

	var decoded bedrockAnthropicResponse
	if err := json.Unmarshal(out.Body, &decoded); err != nil {
		return Response{}, fmt.Errorf("bedrock: response parsing failed: %w", err)
	}

	var text string
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	resp := Response{
		Text:     text,
		Model:    req.Model,
		Provider: c.Name(),
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.InputTokens,
			OutputTokens: decoded.Usage.OutputTokens,
		},
	}
	if err := ValidateResponse(req, resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
