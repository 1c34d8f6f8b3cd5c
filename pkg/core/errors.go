// Package core provides configuration and shared error types for the Lila agent.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrStorageOperation indicates that a storage operation failed.
	ErrStorageOperation = errors.New("storage operation failed")

	// ErrLLMOperation indicates that an LLM call failed.
	ErrLLMOperation = errors.New("llm operation failed")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// OpError wraps errors with operation context.
//
// It records which operation failed, making error messages more
// informative for debugging.
//
// Example:
//
//	err := &OpError{Op: "Respond", Err: ErrLLMOperation}
//	// Error() returns: "lila: Respond: llm operation failed"
type OpError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message in the form "lila: <Op>: <Err>".
func (e *OpError) Error() string {
	return fmt.Sprintf("lila: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error so errors.Is and errors.As work
// through the wrapper.
func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError creates a new OpError wrapping the given error.
//
// If err is nil, returns nil, which allows unconditional wrapping at
// return sites:
//
//	return core.NewOpError("Forget", err)
func NewOpError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
