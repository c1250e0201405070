// Package errors provides the coded error type shared by every stage of a run.
package errors

// Import this package as perr to keep the standard library errors package reachable.

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode classifies a failure. Values are stable; add sparingly.
type ErrorCode uint16

const (
	// CodeUnknown is for unclassified errors
	CodeUnknown ErrorCode = iota

	// CodeInvalidRange is for a date range whose start is after its end
	CodeInvalidRange

	// CodeSourceUnavailable is for an unreachable upstream or rejected credentials
	CodeSourceUnavailable

	// CodeConfiguration is for an empty or unrecognized product selection and other bad settings
	CodeConfiguration

	// CodeArtifactGeneration is for a single report artifact that failed to build
	CodeArtifactGeneration

	// CodePartialFetch is for a fetch stopped by cancellation or timeout
	CodePartialFetch
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:            "unknown",
	CodeInvalidRange:       "invalid_range",
	CodeSourceUnavailable:  "source_unavailable",
	CodeConfiguration:      "configuration_error",
	CodeArtifactGeneration: "artifact_generation_error",
	CodePartialFetch:       "partial_fetch",
}

// String returns the snake_case name used in logs and the run ledger.
func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code_%d", uint16(c))
}

// Fatal reports whether a failure with this code aborts the run.
// Artifact failures are recovered locally; everything else is fatal.
func (c ErrorCode) Fatal() bool { return c != CodeArtifactGeneration }

// Error carries a code, a developer facing message, the stage it happened in,
// the record it concerns (if any) and the wrapped cause.
type Error struct {
	orig   error
	msg    string
	code   ErrorCode
	stage  string
	record string
	op     string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	if e.stage != "" {
		msg = e.stage + ": " + msg
	}
	if e.record != "" {
		msg = fmt.Sprintf("%s (record %s)", msg, e.record)
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", msg, e.orig)
	}
	return msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Stage returns the pipeline stage label, if set
func (e *Error) Stage() string { return e.stage }

// Record returns the record identifier, if set
func (e *Error) Record() string { return e.record }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return CodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return err != nil && CodeOf(err) == code }

// Mutators (copy-on-write)

// WithStage attaches a stage label. Foreign errors are wrapped with CodeUnknown.
func WithStage(err error, stage string) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		c := *e
		c.stage = stage
		return &c
	}
	return &Error{code: CodeUnknown, msg: err.Error(), stage: stage, orig: err}
}

// WithRecord attaches the identifier of the record being processed.
func WithRecord(err error, record string) error {
	if e, ok := As(err); ok {
		c := *e
		c.record = record
		return &c
	}
	return err
}

// WithOp attaches an operation label. If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Sugar

// InvalidRangef returns an invalid range error
func InvalidRangef(format string, a ...any) error { return Newf(CodeInvalidRange, format, a...) }

// Configf returns a configuration error
func Configf(format string, a ...any) error { return Newf(CodeConfiguration, format, a...) }

// Unavailablef returns a source unavailable error
func Unavailablef(format string, a ...any) error { return Newf(CodeSourceUnavailable, format, a...) }
