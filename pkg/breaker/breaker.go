// Package breaker provides the per-provider circuit breaker (spec §4.C): a
// thin manager over sony/gobreaker that lazily creates one breaker per key
// (provider name) and translates pkg/classify outcomes into breaker
// successes/failures so that only failures marked AffectsCircuit count
// toward tripping it.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vecto-pilot/pilot-core/pkg/classify"
	"github.com/vecto-pilot/pilot-core/pkg/provider"
)

// State mirrors gobreaker.State under our own name so callers don't need to
// import gobreaker directly.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen is returned by Run when a key's breaker is open.
var ErrOpen = fmt.Errorf("breaker: circuit open")

// Config controls breaker defaults, matching spec §6 LLM_BREAKER_* env vars.
type Config struct {
	FailureThreshold uint32        // consecutive failures before tripping
	ResetTimeout     time.Duration // time OPEN before probing HALF_OPEN
	HalfOpenMaxCalls uint32        // probe calls allowed in HALF_OPEN
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// StateChangeFunc is invoked whenever a key's breaker transitions state; wired
// to metrics by the caller.
type StateChangeFunc func(key string, from, to State)

// Manager owns one gobreaker.CircuitBreaker per key, created on first use.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	cfg      Config
	onChange StateChangeFunc
}

func NewManager(cfg Config, onChange StateChangeFunc) *Manager {
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
		onChange: onChange,
	}
}

func (m *Manager) breakerFor(key string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[key]; ok {
		return b
	}
	settings := gobreaker.Settings{
		Name:        key,
		MaxRequests: m.cfg.HalfOpenMaxCalls,
		Timeout:     m.cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if m.onChange != nil {
				m.onChange(name, translateState(from), translateState(to))
			}
		},
	}
	b := gobreaker.NewCircuitBreaker(settings)
	m.breakers[key] = b
	return b
}

func translateState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// State reports a key's current breaker state (CLOSED if never observed).
func (m *Manager) State(key string) State {
	m.mu.Lock()
	b, ok := m.breakers[key]
	m.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return translateState(b.State())
}

// Allow reports whether key's breaker currently permits a new call, without
// consuming a HALF_OPEN probe slot. Used by the hedged router to decide
// provider eligibility before racing (spec §4.D).
func (m *Manager) Allow(key string) bool {
	return m.State(key) != StateOpen
}

// Run executes fn under key's breaker: a pre-tripped OPEN breaker returns
// ErrOpen without calling fn. On return, the error (if any) is classified via
// pkg/classify; only classifications with AffectsCircuit=true count as
// breaker failures. Everything else — including plain context cancellation
// — reports success to gobreaker so hedge losers never trip a healthy
// provider's breaker.
func (m *Manager) Run(ctx context.Context, key string, fn func(context.Context) error) error {
	b := m.breakerFor(key)
	var callErr error
	_, execErr := b.Execute(func() (interface{}, error) {
		callErr = fn(ctx)
		if callErr == nil {
			return nil, nil
		}
		c := classify.Classify(classify.Input{Err: callErr, HTTPStatus: provider.HTTPStatusOf(callErr)})
		if !c.AffectsCircuit {
			// Reported as a breaker success so non-circuit-affecting
			// failures (aborted hedge losers, client errors) never trip a
			// healthy provider; callErr is still returned below.
			return nil, nil
		}
		return nil, callErr
	})
	if execErr == gobreaker.ErrOpenState || execErr == gobreaker.ErrTooManyRequests {
		return ErrOpen
	}
	return callErr
}

// Counts exposes gobreaker's rolling window for a key, for metrics/tests.
func (m *Manager) Counts(key string) gobreaker.Counts {
	b := m.breakerFor(key)
	return b.Counts()
}
