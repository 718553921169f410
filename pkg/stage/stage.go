// Package stage runs one pipeline stage under a deadline: build a request,
// call the router, resiliently parse the output, and persist the outcome
// through a compare-and-set write (spec §4.F).
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vecto-pilot/pilot-core/pkg/model"
	"github.com/vecto-pilot/pilot-core/pkg/provider"
	"github.com/vecto-pilot/pilot-core/pkg/router"
	"github.com/vecto-pilot/pilot-core/pkg/store"
)

// ErrTimeout is returned when the stage's own deadline elapses; terminal
// for the stage even if the underlying provider call keeps running briefly
// before its cancel token takes effect.
var ErrTimeout = fmt.Errorf("stage: deadline exceeded")

// Descriptor is the input a caller supplies to Run: how to build the
// request, how to parse the provider's text into a structured output, and
// the CAS predicate/mutator pair that persists the outcome.
type Descriptor struct {
	Role         provider.Role
	BuildRequest func() provider.Request
	// ParseOutput receives the resiliently-extracted JSON payload (already
	// stripped of fences/prose) and must decode it into the caller's
	// target shape.
	ParseOutput func(jsonPayload []byte) error
	// Predicate gates whether the CAS write should apply, given the
	// Strategy row as currently persisted.
	Predicate func(model.Strategy) bool
	// Mutate applies the stage's outcome to the Strategy row in place.
	Mutate func(*model.Strategy)
}

// Outcome reports what a stage run produced, independent of whether
// ParseOutput itself succeeded.
type Outcome struct {
	Response     provider.Response
	CASApplied   bool
	ParseErr     error
}

// Runner executes Descriptors against a Router and persists through a
// Store.
type Runner struct {
	router *router.Router
	store  store.Store
}

func NewRunner(r *router.Router, s store.Store) *Runner {
	return &Runner{router: r, store: s}
}

// Run executes one stage under deadline, resolves via hedged or single
// mode per policy, parses the result, and applies the CAS write.
func (run *Runner) Run(ctx context.Context, snapshotID string, d Descriptor, policy router.RolePolicy, singleProvider string) (Outcome, error) {
	stageCtx := ctx
	var cancel context.CancelFunc
	if policy.Timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	req := d.BuildRequest()
	req.Role = d.Role

	var result router.Result
	var err error
	if policy.Mode == router.ModeSingle {
		result, err = run.router.ExecuteSingle(stageCtx, singleProvider, req, router.Options{Timeout: policy.Timeout})
	} else {
		result, err = run.router.Execute(stageCtx, req, router.Options{Timeout: policy.Timeout})
	}

	if err != nil {
		if stageCtx.Err() == context.DeadlineExceeded {
			return Outcome{}, ErrTimeout
		}
		return Outcome{}, err
	}

	payload, extractErr := ExtractJSON(result.Response.Text)
	var parseErr error
	if extractErr != nil {
		parseErr = extractErr
	} else if d.ParseOutput != nil {
		parseErr = d.ParseOutput(payload)
	}

	applied, casErr := run.store.UpdateStrategyCAS(ctx, snapshotID, d.Predicate, d.Mutate)
	if casErr != nil {
		return Outcome{Response: result.Response, ParseErr: parseErr}, casErr
	}

	return Outcome{Response: result.Response, CASApplied: applied, ParseErr: parseErr}, nil
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON resiliently pulls a JSON payload out of an LLM completion:
// try a direct parse first, then a fenced code block, then the first
// balanced-brace object in the text (spec §4.F).
func ExtractJSON(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	if block, ok := firstBalancedBraceBlock(text); ok {
		return []byte(block), nil
	}

	return nil, fmt.Errorf("stage: no JSON payload found in response")
}

// firstBalancedBraceBlock scans for the first '{' and returns the text up
// to its matching '}', accounting for nested braces and quoted strings.
func firstBalancedBraceBlock(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if json.Valid([]byte(candidate)) {
					return candidate, true
				}
				return "", false
			}
		}
	}
	return "", false
}
