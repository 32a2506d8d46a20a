package chatbridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for request validation.
// All use prefix "chatbridge:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrNilMessages     = errors.New("chatbridge: message sequence must not be nil")
	ErrInvalidRole     = errors.New("chatbridge: invalid message role")
	ErrInvalidToolMode = errors.New("chatbridge: invalid tool mode")
)

// ExecutionError wraps a failure of the execution path finally chosen for a request.
// Use errors.As(err, &execErr) to inspect the path and model.
type ExecutionError struct {
	Path  string
	Model string
	Err   error
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("chatbridge: %s path (model %q): %v", e.Path, e.Model, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/errors.As.
func (e *ExecutionError) Unwrap() error { return e.Err }

// Compile-time check that ExecutionError implements error.
var _ error = (*ExecutionError)(nil)
