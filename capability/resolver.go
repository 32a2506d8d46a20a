package capability

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/skosovsky/chatbridge/adapter"
)

// ErrUnavailable is returned by a Locator when the backend cannot provide the
// capability. The resolver caches this answer.
var ErrUnavailable = errors.New("capability: command execution unavailable")

// Locator finds the executor. Return ErrUnavailable (possibly wrapped) when the backend
// definitely has no such capability; any other error is treated as transient.
type Locator func(ctx context.Context) (adapter.CommandExecutor, error)

// Resolver resolves a CommandExecutor at most once. Concurrent first callers share
// one Locator call. Safe for concurrent use.
type Resolver struct {
	locate Locator
	onMiss func(error)

	mu       sync.RWMutex
	resolved bool
	exec     adapter.CommandExecutor
	sf       singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMissHandler registers fn to receive the Locator error each time resolution
// finds no executor.
func WithMissHandler(fn func(error)) Option {
	return func(r *Resolver) { r.onMiss = fn }
}

// New returns a Resolver backed by locate. A nil locate always resolves to absent.
func New(locate Locator, opts ...Option) *Resolver {
	r := &Resolver{locate: locate}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Static returns an already-resolved Resolver. A nil exec means the capability is absent.
func Static(exec adapter.CommandExecutor) *Resolver {
	return &Resolver{resolved: true, exec: exec}
}

// detachCancel returns a context that outlives parent's cancellation but keeps its
// deadline, so one caller giving up does not fail the shared resolution.
func detachCancel(parent context.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(parent)
	if dl, ok := parent.Deadline(); ok {
		return context.WithDeadline(ctx, dl)
	}
	return context.WithCancel(ctx)
}

// Resolve returns the executor and true, or nil and false when it is absent.
// A definite answer (executor found or ErrUnavailable) is cached; transient errors are
// retried on the next call.
func (r *Resolver) Resolve(ctx context.Context) (adapter.CommandExecutor, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	if r.resolved {
		exec := r.exec
		r.mu.RUnlock()
		return exec, exec != nil
	}
	r.mu.RUnlock()
	if r.locate == nil {
		r.store(nil)
		return nil, false
	}
	if ctx.Err() != nil {
		return nil, false
	}

	v, err, _ := r.sf.Do("", func() (any, error) {
		r.mu.RLock()
		if r.resolved {
			exec := r.exec
			r.mu.RUnlock()
			return exec, nil
		}
		r.mu.RUnlock()
		locateCtx, cancel := detachCancel(ctx)
		defer cancel()
		exec, err := r.locate(locateCtx)
		switch {
		case err == nil:
			r.store(exec)
		case errors.Is(err, ErrUnavailable):
			r.store(nil)
		}
		return exec, err
	})
	if err != nil {
		if r.onMiss != nil {
			r.onMiss(err)
		}
		return nil, false
	}
	exec, _ := v.(adapter.CommandExecutor)
	return exec, exec != nil
}

// Reset forgets the cached answer so the next Resolve calls the Locator again.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.resolved = false
	r.exec = nil
	r.mu.Unlock()
}

func (r *Resolver) store(exec adapter.CommandExecutor) {
	r.mu.Lock()
	r.resolved = true
	r.exec = exec
	r.mu.Unlock()
}
