// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for the socket layer.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrHandleClosed    = errors.New("handle is not open")
	ErrPeerClosed      = errors.New("peer closed the connection")
	ErrNotSupported    = errors.New("operation not supported")
	ErrNotInitialized  = errors.New("socket stack is not initialized")
)

// ErrorCode classifies an error by where it was detected.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	// ErrCodeInvalidArgument: rejected before any OS call.
	ErrCodeInvalidArgument
	// ErrCodeSocket: the OS call reported failure; OSCode carries the platform code.
	ErrCodeSocket
	// ErrCodeResolve: textual address could not be translated.
	ErrCodeResolve
	ErrCodeClosed
	ErrCodePeerClosed
	ErrCodeNotSupported
	ErrCodeLifecycle
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid-argument"
	case ErrCodeSocket:
		return "socket"
	case ErrCodeResolve:
		return "resolve"
	case ErrCodeClosed:
		return "closed"
	case ErrCodePeerClosed:
		return "peer-closed"
	case ErrCodeNotSupported:
		return "not-supported"
	case ErrCodeLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Op      string
	OSCode  int
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the sentinel or OS error behind e.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap sets the underlying cause returned by Unwrap.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// InvalidArgument builds the error recorded when op receives an unusable
// parameter.
func InvalidArgument(op, param, reason string) *Error {
	return NewError(ErrCodeInvalidArgument, op,
		fmt.Sprintf("parameter '%s' %s", param, reason)).
		WithContext("param", param).
		Wrap(ErrInvalidArgument)
}

// CodeOf returns the platform error code carried by err, or 0.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.OSCode
	}
	return 0
}
