package eventbus

import (
	"errors"
	"fmt"
)

// Result summarizes one Dispatch call.
type Result struct {
	// Delivered counts handlers that were invoked.
	Delivered int

	// Errors holds one *HandlerError or *PanicError per failed handler.
	Errors []error
}

// Failed returns the number of handlers that returned an error or panicked.
func (r Result) Failed() int { return len(r.Errors) }

// Panicked returns the number of handlers that panicked.
func (r Result) Panicked() int {
	n := 0
	for _, err := range r.Errors {
		var pe *PanicError
		if errors.As(err, &pe) {
			n++
		}
	}
	return n
}

// Err joins all handler failures, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	Topic string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s: %v", e.Topic, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// PanicError records a recovered handler panic.
type PanicError struct {
	Topic string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler for %s panicked: %v", e.Topic, e.Value)
}
