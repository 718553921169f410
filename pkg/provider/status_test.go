package provider

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPStatusOf(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if got := HTTPStatusOf(nil); got != 0 {
			t.Errorf("HTTPStatusOf(nil) = %d, want 0", got)
		}
	})

	t.Run("plain error carries no status", func(t *testing.T) {
		if got := HTTPStatusOf(errors.New("boom")); got != 0 {
			t.Errorf("HTTPStatusOf(plain) = %d, want 0", got)
		}
	})

	t.Run("StatusError unwraps to its status", func(t *testing.T) {
		err := &StatusError{Status: 503, Err: fmt.Errorf("openai: status 503: service unavailable")}
		if got := HTTPStatusOf(err); got != 503 {
			t.Errorf("HTTPStatusOf(StatusError) = %d, want 503", got)
		}
	})

	t.Run("StatusError wrapped further still resolves", func(t *testing.T) {
		inner := &StatusError{Status: 429, Err: errors.New("rate limited")}
		wrapped := fmt.Errorf("router: all providers failed: %w", inner)
		if got := HTTPStatusOf(wrapped); got != 429 {
			t.Errorf("HTTPStatusOf(wrapped StatusError) = %d, want 429", got)
		}
	})
}
