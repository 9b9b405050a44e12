package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for the API boundary
type Kind int

const (
	// KindInternal is any unexpected failure; surfaced as a generic error
	KindInternal Kind = iota
	// KindNotFound means a referenced entity does not exist
	KindNotFound
	// KindInvalid means a precondition on state or input was violated
	KindInvalid
)

// Error is the result type every service operation fails with.
// The message of Invalid errors is user-facing.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFoundf builds a NotFound error
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Invalidf builds a validation error with a user-facing message
func Invalidf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// Internalf wraps an unexpected failure
func Internalf(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the failure kind; unrecognized errors are internal
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a NotFound service error
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInvalid reports whether err is a validation service error
func IsInvalid(err error) bool {
	return KindOf(err) == KindInvalid
}
