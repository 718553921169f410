package classify

import (
	"context"
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		in             Input
		wantKind       Kind
		wantRetry      bool
		wantCircuit    bool
	}{
		{
			name:        "context canceled is aborted",
			in:          Input{Err: context.Canceled},
			wantKind:    KindAborted,
			wantRetry:   false,
			wantCircuit: false,
		},
		{
			name:        "deadline exceeded is timeout",
			in:          Input{Err: context.DeadlineExceeded},
			wantKind:    KindTimeout,
			wantRetry:   true,
			wantCircuit: true,
		},
		{
			name:        "http 429 is throttled",
			in:          Input{Err: errors.New("boom"), HTTPStatus: 429},
			wantKind:    KindThrottled,
			wantRetry:   false,
			wantCircuit: true,
		},
		{
			name:        "rate limit message is throttled",
			in:          Input{Err: errors.New("rate limit exceeded for model")},
			wantKind:    KindThrottled,
			wantRetry:   false,
			wantCircuit: true,
		},
		{
			name:        "http 503 is server",
			in:          Input{Err: errors.New("boom"), HTTPStatus: 503},
			wantKind:    KindServer,
			wantRetry:   true,
			wantCircuit: true,
		},
		{
			name:        "http 400 is client",
			in:          Input{Err: errors.New("boom"), HTTPStatus: 400},
			wantKind:    KindClient,
			wantRetry:   false,
			wantCircuit: false,
		},
		{
			name:        "connection refused is network",
			in:          Input{Err: errors.New("dial tcp: connection refused")},
			wantKind:    KindNetwork,
			wantRetry:   true,
			wantCircuit: true,
		},
		{
			name:        "unrecognized message is unknown",
			in:          Input{Err: errors.New("something weird happened")},
			wantKind:    KindUnknown,
			wantRetry:   true,
			wantCircuit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.ShouldRetry != tt.wantRetry {
				t.Errorf("ShouldRetry = %v, want %v", got.ShouldRetry, tt.wantRetry)
			}
			if got.AffectsCircuit != tt.wantCircuit {
				t.Errorf("AffectsCircuit = %v, want %v", got.AffectsCircuit, tt.wantCircuit)
			}
		})
	}
}

func TestKindPolicyTable(t *testing.T) {
	if !KindTimeout.ShouldRetry() || !KindTimeout.AffectsCircuit() {
		t.Error("TIMEOUT must retry and affect the circuit")
	}
	if KindAborted.ShouldRetry() || KindAborted.AffectsCircuit() {
		t.Error("ABORTED must not retry or affect the circuit")
	}
	if KindClient.ShouldRetry() || KindClient.AffectsCircuit() {
		t.Error("CLIENT must not retry or affect the circuit")
	}
}
