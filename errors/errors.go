package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfig marks malformed or contradictory configuration.
	// Fatal at load; a failed reload keeps the previous configuration.
	ErrorTypeConfig ErrorType = "config"

	// ErrorTypeRotation marks a failed rotation. The active file keeps growing.
	ErrorTypeRotation ErrorType = "rotation"

	// ErrorTypeAppender marks an unavailable sink.
	ErrorTypeAppender ErrorType = "appender"

	// ErrorTypeInternal marks a runtime fault such as a recovered panic.
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinels for errors.Is matching by type.
var (
	ErrConfig   = &AppError{Type: ErrorTypeConfig}
	ErrRotation = &AppError{Type: ErrorTypeRotation}
	ErrAppender = &AppError{Type: ErrorTypeAppender}
	ErrInternal = &AppError{Type: ErrorTypeInternal}
)

// AppError represents a structured runtime error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
	Stack      []string               `json:"-"`

	// Fatal is set when the failing component cannot recover on its own,
	// e.g. a console appender whose stream was closed.
	Fatal bool `json:"fatal,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.InnerError != nil {
		b.WriteString(": ")
		b.WriteString(e.InnerError.Error())
	}
	return b.String()
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode adds a code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithFatal marks the error as unrecoverable for the component that raised it.
func (e *AppError) WithFatal() *AppError {
	e.Fatal = true
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// Is checks if this error is of a specific type. A target carrying its own
// code, other than the type's default, matches only errors with that code.
func (e *AppError) Is(target error) bool {
	targetApp, ok := target.(*AppError)
	if !ok || e.Type != targetApp.Type {
		return false
	}
	if targetApp.Code == "" || targetApp.Code == string(targetApp.Type) {
		return true
	}
	return e.Code == targetApp.Code
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(errType ErrorType, format string, args ...any) *AppError {
	return New(errType, fmt.Sprintf(format, args...))
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       string(ErrorTypeInternal),
		InnerError: err,
	}
}

// Wrap wraps an error with a specific type
func Wrap(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// NewConfig reports a configuration error.
func NewConfig(format string, args ...any) *AppError {
	return Newf(ErrorTypeConfig, format, args...)
}

// NewRotation reports a failed rotation of the given file.
func NewRotation(path string, err error) *AppError {
	return Wrap(err, ErrorTypeRotation, "rotate "+path).WithDetail("path", path)
}

// NewAppender reports a sink failure for the named appender.
func NewAppender(name string, err error) *AppError {
	return Wrap(err, ErrorTypeAppender, "appender "+name).WithDetail("appender", name)
}

// IsFatal reports whether err carries an AppError marked fatal.
func IsFatal(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Fatal
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal for foreign errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Join, Is and As re-export the standard library helpers so callers need a single import.
var (
	Join = errors.Join
	Is   = errors.Is
	As   = errors.As
)

func captureStack(skip int) []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return stack
}
