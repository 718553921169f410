// Package gate implements the per-provider concurrency gate (spec §4.B): a
// semaphore with a bounded FIFO waiter queue per key, context-aware
// acquisition, and a queue timeout distinct from cancellation.
package gate

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"
)

// ErrQueueTimeout is returned when a waiter sits longer than queueTimeout.
var ErrQueueTimeout = fmt.Errorf("gate: queue timeout exceeded")

// ErrAborted is returned when the caller's context is canceled while
// waiting for a permit.
var ErrAborted = fmt.Errorf("gate: acquire aborted")

// Permit represents one held slot. Release must be called exactly once.
type Permit struct {
	key      string
	released bool
	mu       sync.Mutex
	release  func()
}

// Release returns the slot to its key's pool, handing it to the next FIFO
// waiter if one is queued. Safe to call more than once; only the first call
// has an effect.
func (p *Permit) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	p.release()
}

type keyState struct {
	mu       sync.Mutex
	active   int
	max      int
	waiters  *list.List // of chan struct{}
}

// Gate bounds concurrent in-flight calls per key (typically a provider
// name). Zero value is not usable; use New.
type Gate struct {
	mu           sync.Mutex
	keys         map[string]*keyState
	defaultMax   int
	queueTimeout time.Duration
}

// Config controls the gate's defaults; per-key overrides are set after
// construction with SetMax.
type Config struct {
	MaxConcurrent int
	QueueTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{MaxConcurrent: 10, QueueTimeout: 30 * time.Second}
}

func New(cfg Config) *Gate {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = 30 * time.Second
	}
	return &Gate{
		keys:         make(map[string]*keyState),
		defaultMax:   cfg.MaxConcurrent,
		queueTimeout: cfg.QueueTimeout,
	}
}

func (g *Gate) stateFor(key string) *keyState {
	g.mu.Lock()
	defer g.mu.Unlock()
	ks, ok := g.keys[key]
	if !ok {
		ks = &keyState{max: g.defaultMax, waiters: list.New()}
		g.keys[key] = ks
	}
	return ks
}

// SetMax overrides the concurrency ceiling for one key; takes effect for
// subsequent Acquire calls.
func (g *Gate) SetMax(key string, max int) {
	ks := g.stateFor(key)
	ks.mu.Lock()
	ks.max = max
	ks.mu.Unlock()
}

// Acquire blocks until a slot for key is available, the context is
// canceled, or queueTimeout elapses — whichever happens first.
func (g *Gate) Acquire(ctx context.Context, key string) (*Permit, error) {
	ks := g.stateFor(key)

	ks.mu.Lock()
	if ks.active < ks.max {
		ks.active++
		ks.mu.Unlock()
		return g.newPermit(key, ks), nil
	}

	ready := make(chan struct{})
	elem := ks.waiters.PushBack(ready)
	ks.mu.Unlock()

	timer := time.NewTimer(g.queueTimeout)
	defer timer.Stop()

	select {
	case <-ready:
		return g.newPermit(key, ks), nil
	case <-ctx.Done():
		g.removeWaiter(ks, elem)
		return nil, ErrAborted
	case <-timer.C:
		g.removeWaiter(ks, elem)
		return nil, ErrQueueTimeout
	}
}

func (g *Gate) newPermit(key string, ks *keyState) *Permit {
	p := &Permit{key: key}
	p.release = func() {
		ks.mu.Lock()
		defer ks.mu.Unlock()
		front := ks.waiters.Front()
		if front == nil {
			ks.active--
			return
		}
		ks.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		// active stays the same: the slot transfers directly to the waiter.
	}
	return p
}

// removeWaiter drops a timed-out/aborted waiter from the queue. If it had
// already been signaled (a race with Release), drain the permit by
// releasing it immediately rather than leaking the slot.
func (g *Gate) removeWaiter(ks *keyState, elem *list.Element) {
	ks.mu.Lock()
	ch, _ := elem.Value.(chan struct{})
	select {
	case <-ch:
		// Already handed a slot; release it back since the caller is giving up.
		ks.mu.Unlock()
		g.newPermit("", ks).Release()
		return
	default:
	}
	// Only remove if still present in the list.
	for e := ks.waiters.Front(); e != nil; e = e.Next() {
		if e == elem {
			ks.waiters.Remove(e)
			break
		}
	}
	ks.mu.Unlock()
}

// Active returns the current in-flight count for a key (test/metrics use).
func (g *Gate) Active(key string) int {
	ks := g.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.active
}

// Waiting returns the current FIFO queue depth for a key.
func (g *Gate) Waiting(key string) int {
	ks := g.stateFor(key)
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.waiters.Len()
}
