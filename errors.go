package rt

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Run and Spawn after Close.
var ErrClosed = errors.New("rt: runtime closed")

// InitError indicates that a Runtime could not be constructed.
type InitError struct {
	// Err is the underlying cause.
	Err error
	// Op names the component that failed, e.g. "reactor".
	Op string
}

// Error implements the error interface.
func (e *InitError) Error() string {
	return fmt.Sprintf("rt: init %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}
