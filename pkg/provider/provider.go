// Package provider defines the adapter surface every LLM backend implements
// (spec §4.E) and the shared guards — token budget, model identity, safety
// refusal — that every adapter must enforce before its response reaches the
// hedged router.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Role is the pipeline stage a call is made on behalf of; adapters use it
// only for logging, never to change wire behavior.
type Role string

const (
	RoleStrategist   Role = "strategist"
	RoleBriefer      Role = "briefer"
	RoleConsolidator Role = "consolidator"
	RolePlanner      Role = "venue_planner"
)

// Request is the adapter-agnostic input to a single provider call.
type Request struct {
	Role         Role
	SystemPrompt string
	UserPrompt   string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// TokenUsage reports provider-native token accounting when available.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the adapter-agnostic result of a single provider call.
type Response struct {
	Text     string
	Model    string
	Provider string
	Usage    TokenUsage
}

// Provider is the common interface every adapter satisfies; the hedged
// router and stage runner depend only on this, never on a concrete SDK
// client.
type Provider interface {
	// Name identifies the provider for gate/breaker keys and logging.
	Name() string
	// Call performs one request. Implementations must return promptly on
	// ctx cancellation — the hedged router cancels losers.
	Call(ctx context.Context, req Request) (Response, error)
	// IsHealthy reports the provider's last-known liveness without making
	// a network call.
	IsHealthy() bool
}

// Guard errors returned by ValidateResponse; adapters call it before
// returning so every backend enforces the same minimum bar.
var (
	ErrEmptyResponse  = fmt.Errorf("provider: empty response text")
	ErrTokenBudget    = fmt.Errorf("provider: response exceeded token budget")
	ErrModelMismatch  = fmt.Errorf("provider: response model does not match request model")
	ErrSafetyRefusal  = fmt.Errorf("provider: response looks like a safety refusal")
)

var refusalPhrases = []string{
	"i cannot assist",
	"i can't assist",
	"i'm not able to help with that",
	"as an ai language model, i cannot",
	"i must decline",
}

// ValidateResponse applies the guards common to every adapter: non-empty
// text, a usage total within MaxTokens (when MaxTokens > 0 and Usage is
// populated), model identity when the provider echoes one back, and a
// coarse safety-refusal phrase check.
func ValidateResponse(req Request, resp Response) error {
	if strings.TrimSpace(resp.Text) == "" {
		return ErrEmptyResponse
	}
	if req.MaxTokens > 0 && resp.Usage.OutputTokens > 0 && resp.Usage.OutputTokens > req.MaxTokens {
		return ErrTokenBudget
	}
	if resp.Model != "" && req.Model != "" && resp.Model != req.Model {
		return ErrModelMismatch
	}
	lower := strings.ToLower(resp.Text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return ErrSafetyRefusal
		}
	}
	return nil
}
