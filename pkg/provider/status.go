package provider

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"google.golang.org/api/googleapi"
)

// StatusError wraps an adapter error with the HTTP status code observed on
// the wire, for the providers that make a raw net/http call (openai,
// perplexity) rather than going through an SDK that carries its own typed
// error.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string { return e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatusOf extracts the HTTP status code backing err, if any is
// reachable, so the router/breaker boundary can feed it into
// classify.Input.HTTPStatus instead of relying on message-substring
// matching alone (spec §4.A: SERVER = HTTP 5xx must reliably trip the
// circuit). Returns 0 when no typed status is reachable — Classify falls
// back to its text-matching rules in that case.
func HTTPStatusOf(err error) int {
	if err == nil {
		return 0
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}

	// Covers GeminiClient: generative-ai-go talks the Generative Language
	// REST API and surfaces failures as *googleapi.Error.
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return googleErr.Code
	}

	// Covers BedrockClient: aws-sdk-go-v2 wraps transport-level failures in
	// *smithyhttp.ResponseError, which carries the raw response status.
	var smithyErr *smithyhttp.ResponseError
	if errors.As(err, &smithyErr) {
		return smithyErr.HTTPStatusCode()
	}

	return 0
}
