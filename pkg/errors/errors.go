// Package errors provides structured error types for svg2img.
//
// Every stage of the rendering pipeline fails with an *Error carrying a
// machine-readable code. The code identifies the failing stage, so callers
// (CLI, HTTP service, library users) can present a single descriptive message
// and map failures to exit codes or HTTP statuses without string matching.
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Option and input validation failures (rejected before rendering)
//   - PARSE_*, SIZE_*, RENDER_*, CONVERSION_*, ENCODE_*: Pipeline stage failures
//   - IO_*: Destination write failures
//   - INTERNAL_*: Programmer errors and unexpected states
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidFormat, "unknown format: %s", name)
//	if errors.Is(err, errors.ErrCodeInvalidFormat) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeParse, origErr, "failed to parse SVG")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidOption Code = "INVALID_OPTION"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Pipeline stage errors
	ErrCodeParse            Code = "PARSE_FAILED"
	ErrCodeSize             Code = "SIZE_INVALID"
	ErrCodeAllocationFailed Code = "RENDER_ALLOCATION_FAILED"
	ErrCodeEngineAborted    Code = "RENDER_ENGINE_ABORTED"
	ErrCodeConversion       Code = "CONVERSION_FAILED"
	ErrCodeEncode           Code = "ENCODE_FAILED"

	// Destination errors
	ErrCodeIO Code = "IO_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Stage names used in error messages and observability events.
const (
	StageValidate  = "validate"
	StageParse     = "parse"
	StagePlan      = "plan"
	StageRasterize = "rasterize"
	StageConvert   = "convert"
	StageDownscale = "downsample"
	StageEncode    = "encode"
	StageDeliver   = "deliver"
)

var codeStages = map[Code]string{
	ErrCodeInvalidInput:     StageValidate,
	ErrCodeInvalidFormat:    StageValidate,
	ErrCodeInvalidOption:    StageValidate,
	ErrCodeInvalidPath:      StageValidate,
	ErrCodeParse:            StageParse,
	ErrCodeSize:             StagePlan,
	ErrCodeAllocationFailed: StageRasterize,
	ErrCodeEngineAborted:    StageRasterize,
	ErrCodeConversion:       StageConvert,
	ErrCodeEncode:           StageEncode,
	ErrCodeIO:               StageDeliver,
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As is errors.As from the standard library, re-exported so callers need
// only one errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Stage returns the pipeline stage a code belongs to, or "" for codes
// without a stage (internal errors).
func Stage(code Code) string {
	return codeStages[code]
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix, followed by
// the cause if there is one. For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// IsInputError reports whether err was caused by the caller's input
// (options, markup or requested size) rather than by the renderer or the
// environment.
func IsInputError(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidFormat, ErrCodeInvalidOption,
		ErrCodeInvalidPath, ErrCodeParse, ErrCodeSize:
		return true
	}
	return false
}
