package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass is the structured failure taxonomy for model calls. Retry
// decisions are made on the class, never on error text.
type ErrorClass string

const (
	// ClassTimeout covers per-call deadline expiry and network timeouts.
	ClassTimeout ErrorClass = "timeout"

	// ClassAuth covers authentication and authorization failures.
	ClassAuth ErrorClass = "auth"

	// ClassUnavailable means the backend reported itself permanently
	// unavailable for this request (decommissioned model, dead endpoint).
	ClassUnavailable ErrorClass = "unavailable"

	// ClassMalformed means the backend rejected the request shape.
	ClassMalformed ErrorClass = "malformed"

	// ClassUnknown is everything else, including transient network faults.
	ClassUnknown ErrorClass = "unknown"
)

// CallError is the typed failure raised by a Backend.
type CallError struct {
	Class   ErrorClass
	Message string
	Err     error // underlying cause, may be nil
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: %s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("backend: %s: %s", e.Class, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// NewCallError builds a CallError with the given class.
func NewCallError(class ErrorClass, message string, cause error) *CallError {
	return &CallError{Class: class, Message: message, Err: cause}
}

// ClassOf extracts the ErrorClass from err. Non-CallError failures are
// classified structurally: deadline expiry and net timeouts map to
// ClassTimeout, everything else to ClassUnknown.
func ClassOf(err error) ErrorClass {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassTimeout
	}
	return ClassUnknown
}

// Retryable reports whether a failed call may be re-attempted. Auth,
// malformed-request, and permanently-unavailable failures never are.
func Retryable(err error) bool {
	switch ClassOf(err) {
	case ClassAuth, ClassMalformed, ClassUnavailable:
		return false
	}
	return true
}
