// Package poolerrors provides structured errors for reservoir with categories,
// key-value context and stack traces captured at the point of creation.
//
// # Overview
//
// Only a handful of conditions ever surface to callers of a pool:
//   - ErrorTypeConfig: invalid minimum/maximum bounds or configuration values
//   - ErrorTypeFactory: the factory failed to construct a new value
//   - ErrorTypeClosed: the pool was used after Close
//
// Reset and release failures are absorbed by the pool and never reach callers;
// they only show up in diagnostics counters and logs.
//
// # Basic Usage
//
//	err := poolerrors.New(poolerrors.ErrorTypeConfig, "minimum exceeds maximum").
//	    WithDetail("minimum", 8).
//	    WithDetail("maximum", 4)
//
//	if poolerrors.IsType(err, poolerrors.ErrorTypeConfig) {
//	    // reject the configuration
//	}
//
// # Thread Safety
//
// Error instances are not thread-safe for modification. Add details before
// sharing an error across goroutines.
package poolerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal invariant violations
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration and bounds errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFactory represents failures constructing a new pooled value
	ErrorTypeFactory ErrorType = "factory"
	// ErrorTypeClosed represents use of a pool after it was closed
	ErrorTypeClosed ErrorType = "closed"
	// ErrorTypeFile represents configuration file errors
	ErrorTypeFile ErrorType = "file"
	// ErrorTypeCodec represents compression and decompression failures of
	// pooled codecs
	ErrorTypeCodec ErrorType = "codec"
)

// ErrPoolClosed is returned when acquiring from, or closing, an already closed pool.
var ErrPoolClosed = &Error{Type: ErrorTypeClosed, Message: "pool is closed"}

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a structured error of the same type and message.
// It lets sentinel errors such as ErrPoolClosed match wrapped copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithDetail adds a key-value detail to the error. Chainable.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the original
// error as the cause. If the error is already a structured Error, its stack
// trace is preserved. Returns nil if the input error is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existingErr *Error
	if errors.As(err, &existingErr) && existingErr.Stack != nil {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the outermost structured error in err's chain is of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
