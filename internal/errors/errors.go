// Package errors provides the error taxonomy for tntracker.
//
// Fetch and parse failures are recoverable and are downgraded to warnings by
// the pipeline. Configuration errors are the only errors that end a command
// with a non-zero exit status.
package errors

import (
	"errors"
	"fmt"
)

// New is an alias for the standard library errors.New.
var New = errors.New

// Sentinel errors
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrConfiguration marks fatal configuration problems
	ErrConfiguration = errors.New("configuration error")

	// ErrFetch marks source retrieval failures
	ErrFetch = errors.New("fetch failed")

	// ErrParse marks malformed input
	ErrParse = errors.New("parse failed")

	// ErrStopped is returned when work is refused after a cooperative stop
	ErrStopped = errors.New("stopped")
)

// FetchKind classifies a fetch failure.
type FetchKind string

// Fetch failure kinds
const (
	FetchUnreachable FetchKind = "unreachable"
	FetchTimeout     FetchKind = "timeout"
	FetchForbidden   FetchKind = "forbidden"
	FetchNotFound    FetchKind = "not_found"
)

// FetchError is returned by fetchers when an origin cannot be retrieved.
type FetchError struct {
	Kind       FetchKind
	Origin     string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.Origin, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	if target == ErrFetch {
		return true
	}
	return target == ErrTimeout && e.Kind == FetchTimeout
}

// NewFetchError creates a new FetchError
func NewFetchError(kind FetchKind, origin string, statusCode int, err error) *FetchError {
	return &FetchError{Kind: kind, Origin: origin, StatusCode: statusCode, Err: err}
}

// ParseKind classifies a parse failure.
type ParseKind string

// Parse failure kinds
const (
	ParseHeader   ParseKind = "header"
	ParseDocument ParseKind = "document"
	ParseRow      ParseKind = "row"
	ParseField    ParseKind = "field"
	ParseSchema   ParseKind = "schema"
)

// ParseError describes malformed input. Row or Offset locate the unit when
// known. Fatal parse errors mean the whole document is unusable.
type ParseError struct {
	Kind   ParseKind
	Format string
	Row    int
	Offset int64
	Detail string
	Fatal  bool
	Err    error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	loc := ""
	switch {
	case e.Row > 0:
		loc = fmt.Sprintf(" row %d", e.Row)
	case e.Offset > 0:
		loc = fmt.Sprintf(" offset %d", e.Offset)
	}
	msg := fmt.Sprintf("parse %s%s: %s: %s", e.Format, loc, e.Kind, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewRowError creates a ParseError for a single malformed row.
func NewRowError(format string, row int, detail string, err error) *ParseError {
	return &ParseError{Kind: ParseRow, Format: format, Row: row, Detail: detail, Err: err}
}

// NewDocumentError creates a fatal ParseError for an unusable document.
func NewDocumentError(format string, kind ParseKind, detail string, err error) *ParseError {
	return &ParseError{Kind: kind, Format: format, Detail: detail, Fatal: true, Err: err}
}

// ConfigError represents a fatal configuration problem
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Err: err}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfigError checks if an error is fatal for the current command
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsFetchError checks if an error came from a fetcher
func IsFetchError(err error) bool {
	return errors.Is(err, ErrFetch)
}

// AsFetchError extracts a FetchError from an error chain
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// AsParseError extracts a ParseError from an error chain
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
