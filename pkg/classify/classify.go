// Package classify maps any error observed at a provider-adapter boundary
// to a fixed taxonomy (spec §4.A), each kind carrying two booleans that the
// concurrency gate, circuit breaker, and hedged router all read:
// shouldRetry and affectsCircuit.
package classify

import (
	"context"
	"errors"
	"strings"
)

type Kind string

const (
	KindAborted   Kind = "ABORTED"
	KindTimeout   Kind = "TIMEOUT"
	KindThrottled Kind = "THROTTLED"
	KindServer    Kind = "SERVER"
	KindClient    Kind = "CLIENT"
	KindNetwork   Kind = "NETWORK"
	KindUnknown   Kind = "UNKNOWN"
)

// policy is the fixed shouldRetry/affectsCircuit table from spec §4.A.
var policy = map[Kind]struct {
	ShouldRetry    bool
	AffectsCircuit bool
}{
	KindAborted:   {ShouldRetry: false, AffectsCircuit: false},
	KindTimeout:   {ShouldRetry: true, AffectsCircuit: true},
	KindThrottled: {ShouldRetry: false, AffectsCircuit: true},
	KindServer:    {ShouldRetry: true, AffectsCircuit: true},
	KindClient:    {ShouldRetry: false, AffectsCircuit: false},
	KindNetwork:   {ShouldRetry: true, AffectsCircuit: true},
	KindUnknown:   {ShouldRetry: true, AffectsCircuit: false},
}

func (k Kind) ShouldRetry() bool {
	return policy[k].ShouldRetry
}

func (k Kind) AffectsCircuit() bool {
	return policy[k].AffectsCircuit
}

// Classification is the result of classifying a single error observation.
type Classification struct {
	Kind           Kind
	ShouldRetry    bool
	AffectsCircuit bool
	Reason         string
}

// Input carries everything a call site might know about a failed call;
// every field is optional except Err.
type Input struct {
	Err          error
	HTTPStatus   int
	PlatformCode string
}

// Classify checks, in order: context cancellation/deadline errors,
// cancellation wording, throttling (HTTP 429 or rate-limit wording), any
// other HTTP status (5xx SERVER, 4xx CLIENT), and then message substrings
// for timeout, network, server and client failures; it returns the first
// matching kind. PlatformCode is not consulted.
func Classify(in Input) Classification {
	if in.Err == nil {
		return build(KindUnknown, "no error")
	}

	if errors.Is(in.Err, context.Canceled) {
		return build(KindAborted, "context canceled")
	}
	if errors.Is(in.Err, context.DeadlineExceeded) {
		return build(KindTimeout, "context deadline exceeded")
	}

	msg := strings.ToLower(in.Err.Error())

	if containsAny(msg, "canceled", "cancelled", "hedge loser", "race lost") {
		return build(KindAborted, "explicit cancellation")
	}

	if in.HTTPStatus == 429 || containsAny(msg, "rate limit", "quota exceeded", "too many requests") {
		return build(KindThrottled, "rate limited")
	}

	if in.HTTPStatus != 0 {
		switch {
		case in.HTTPStatus >= 500:
			return build(KindServer, "http 5xx")
		case in.HTTPStatus >= 400:
			return build(KindClient, "http 4xx")
		}
	}

	if containsAny(msg, "timeout", "timed out", "deadline exceeded", "context deadline") {
		return build(KindTimeout, "timeout")
	}

	if containsAny(msg, "connection refused", "connection reset", "no such host", "dns", "network is unreachable", "broken pipe", "network") {
		return build(KindNetwork, "network failure")
	}

	if containsAny(msg, "internal server error", "service unavailable", "bad gateway", "gateway timeout", "no_providers_available") {
		return build(KindServer, "server error text")
	}

	if containsAny(msg, "bad request", "invalid", "unauthorized", "forbidden", "not found", "unprocessable") {
		return build(KindClient, "client error text")
	}

	return build(KindUnknown, "unclassified")
}

func build(kind Kind, reason string) Classification {
	p := policy[kind]
	return Classification{Kind: kind, ShouldRetry: p.ShouldRetry, AffectsCircuit: p.AffectsCircuit, Reason: reason}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
