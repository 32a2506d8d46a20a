package router

import (
	"go.uber.org/zap"

	"github.com/skosovsky/chatbridge/adapter"
	"github.com/skosovsky/chatbridge/capability"
)

// Option configures a Router (functional options pattern).
type Option func(*Router)

// WithCapability sets the resolver for the command executor. Without it (or
// WithExecutor) every request takes the standard path.
func WithCapability(r *capability.Resolver) Option {
	return func(rt *Router) { rt.caps = r }
}

// WithExecutor sets an already-available command executor. A nil exec means absent.
func WithExecutor(exec adapter.CommandExecutor) Option {
	return func(rt *Router) { rt.caps = capability.Static(exec) }
}

// WithCommand overrides the command name passed to the executor.
// Default is adapter.CommandChatCompletions.
func WithCommand(name string) Option {
	return func(rt *Router) {
		if name != "" {
			rt.command = name
		}
	}
}

// WithLogger sets the logger. Default is zap.NewNop(). A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(rt *Router) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithObserver sets the observer for routing events. A nil observer is ignored.
func WithObserver(o Observer) Option {
	return func(rt *Router) {
		if o != nil {
			rt.observer = o
		}
	}
}
