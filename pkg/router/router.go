// Package router implements the hedged multi-provider router (spec §4.D):
// race eligible providers for a request, let the first success win, and
// cancel the rest — with a non-hedged single-provider path for
// accuracy-critical roles.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vecto-pilot/pilot-core/pkg/breaker"
	"github.com/vecto-pilot/pilot-core/pkg/classify"
	"github.com/vecto-pilot/pilot-core/pkg/gate"
	"github.com/vecto-pilot/pilot-core/pkg/metrics"
	"github.com/vecto-pilot/pilot-core/pkg/provider"
)

// ErrNoProvidersAvailable is returned when every configured provider's
// circuit is open.
var ErrNoProvidersAvailable = fmt.Errorf("router: NO_PROVIDERS_AVAILABLE")

// Mode selects hedged-race vs single-provider execution for a role.
type Mode string

const (
	ModeHedged Mode = "hedged"
	ModeSingle Mode = "single"
)

// RolePolicy is one row of the role→mode/timeout table (spec §4.D).
type RolePolicy struct {
	Mode    Mode
	Timeout time.Duration
}

// DefaultPolicies mirrors the illustrative table in the spec; callers may
// override per role.
func DefaultPolicies() map[provider.Role]RolePolicy {
	return map[provider.Role]RolePolicy{
		provider.RoleBriefer:      {Mode: ModeHedged, Timeout: 8 * time.Second},
		provider.RoleStrategist:   {Mode: ModeSingle, Timeout: 30 * time.Second},
		provider.RoleConsolidator: {Mode: ModeHedged, Timeout: 8 * time.Second},
		provider.RolePlanner:      {Mode: ModeSingle, Timeout: 180 * time.Second},
	}
}

// Result is what Execute/ExecuteSingle return on success.
type Result struct {
	Response        provider.Response
	WinningProvider string
	LatencyMS       int64
}

// Options overrides the default per-role timeout for one call.
type Options struct {
	Timeout time.Duration
}

// Router owns the provider set and the shared gate/breaker state each call
// consults.
type Router struct {
	providers map[string]provider.Provider
	gate      *gate.Gate
	breakers  *breaker.Manager
	metrics   metrics.Recorder
}

func New(providers []provider.Provider, g *gate.Gate, b *breaker.Manager) *Router {
	m := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Router{providers: m, gate: g, breakers: b, metrics: metrics.NoopRecorder{}}
}

// WithMetrics swaps in a non-noop Recorder; returns the Router for chaining
// at construction time.
func (r *Router) WithMetrics(m metrics.Recorder) *Router {
	if m != nil {
		r.metrics = m
	}
	return r
}

// eligible returns the candidate providers whose circuit is not OPEN.
func (r *Router) eligible() []provider.Provider {
	out := make([]provider.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if r.breakers.Allow(p.Name()) {
			out = append(out, p)
		}
	}
	return out
}

type raceOutcome struct {
	resp     provider.Response
	provider string
	err      error
}

// Execute races every eligible provider in parallel; the first success wins
// and cancels the rest (spec §4.D steps 1-5).
func (r *Router) Execute(ctx context.Context, req provider.Request, opts Options) (Result, error) {
	candidates := r.eligible()
	if len(candidates) == 0 {
		return Result{}, ErrNoProvidersAvailable
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	winner := make(chan raceOutcome, len(candidates))
	var wg sync.WaitGroup

	for _, p := range candidates {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := r.callOne(callCtx, p, req)
			select {
			case winner <- raceOutcome{resp: resp, provider: p.Name(), err: err}:
			case <-callCtx.Done():
			}
		}()
	}

	errs := make(map[string]error, len(candidates))
	for i := 0; i < len(candidates); i++ {
		select {
		case out := <-winner:
			if out.err == nil {
				cancel() // cancels every other in-flight call; they release their own gate permits.
				wg.Wait()
				r.metrics.HedgeRace(string(req.Role), out.provider, len(candidates)-1)
				return Result{
					Response:        out.resp,
					WinningProvider: out.provider,
					LatencyMS:       time.Since(start).Milliseconds(),
				}, nil
			}
			errs[out.provider] = out.err
		case <-callCtx.Done():
			wg.Wait()
			return Result{}, classifyWorst(errs, callCtx.Err())
		}
	}
	wg.Wait()
	return Result{}, classifyWorst(errs, nil)
}

// ExecuteSingle runs one named provider without racing — used for
// accuracy-critical roles (strategy_core, venue_scorer).
func (r *Router) ExecuteSingle(ctx context.Context, providerName string, req provider.Request, opts Options) (Result, error) {
	p, ok := r.providers[providerName]
	if !ok {
		return Result{}, fmt.Errorf("router: unknown provider %q", providerName)
	}
	if !r.breakers.Allow(providerName) {
		return Result{}, ErrNoProvidersAvailable
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.callOne(callCtx, p, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Response: resp, WinningProvider: p.Name(), LatencyMS: time.Since(start).Milliseconds()}, nil
}

// callOne acquires the provider's concurrency-gate permit, runs the call
// through its breaker, and always releases the permit.
func (r *Router) callOne(ctx context.Context, p provider.Provider, req provider.Request) (provider.Response, error) {
	waitStart := time.Now()
	permit, err := r.gate.Acquire(ctx, p.Name())
	r.metrics.GateWait(p.Name(), time.Since(waitStart).Seconds())
	if err != nil {
		return provider.Response{}, err
	}
	defer permit.Release()

	callStart := time.Now()
	var resp provider.Response
	runErr := r.breakers.Run(ctx, p.Name(), func(ctx context.Context) error {
		var callErr error
		resp, callErr = p.Call(ctx, req)
		return callErr
	})
	classification := "ok"
	if runErr != nil {
		classification = string(classify.Classify(classify.Input{Err: runErr, HTTPStatus: provider.HTTPStatusOf(runErr)}).Kind)
	}
	r.metrics.ProviderCall(p.Name(), string(req.Role), classification, time.Since(callStart).Seconds())
	if runErr != nil {
		return provider.Response{}, runErr
	}
	return resp, nil
}

// classifyWorst aggregates per-provider errors and returns a single error
// tagged with the worst observed classification, per spec §4.D.4.
func classifyWorst(errs map[string]error, fallback error) error {
	if len(errs) == 0 {
		if fallback != nil {
			return fallback
		}
		return ErrNoProvidersAvailable
	}

	var worst classify.Kind
	var worstErr error
	rank := map[classify.Kind]int{
		classify.KindAborted:   0,
		classify.KindClient:    1,
		classify.KindUnknown:   2,
		classify.KindThrottled: 3,
		classify.KindNetwork:   4,
		classify.KindTimeout:   5,
		classify.KindServer:    6,
	}

	first := true
	for name, err := range errs {
		c := classify.Classify(classify.Input{Err: err, HTTPStatus: provider.HTTPStatusOf(err)})
		if first || rank[c.Kind] > rank[worst] {
			worst = c.Kind
			worstErr = fmt.Errorf("%s: %w", name, err)
			first = false
		}
	}
	return fmt.Errorf("router: all providers failed, worst=%s: %w", worst, worstErr)
}
