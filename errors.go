package loom

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for Context misuse.
var (
	// ErrContextFinalized is returned by response mutators after the
	// response has been finalized (flushed or taken over).
	ErrContextFinalized = errors.New("loom: context finalized")

	// ErrBodyConsumed is returned when the request body is read a second
	// time. The underlying stream is not rewindable.
	ErrBodyConsumed = errors.New("loom: request body already consumed")
)

// StatusClientClosedRequest is the non-standard status used when the client
// goes away before a response is produced. The reply is best-effort; it
// exists for logs and metrics more than for the wire.
const StatusClientClosedRequest = 499

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// PatternError describes a malformed route pattern. It is detected at
// registration time and is fatal to startup: registration methods panic
// with it.
type PatternError struct {
	Pattern string
	Reason  string
}

// Error returns the pattern and the reason it failed to compile.
func (e *PatternError) Error() string {
	return fmt.Sprintf("loom: invalid pattern %q: %s", e.Pattern, e.Reason)
}

func patternErrorf(pattern, format string, args ...any) *PatternError {
	return &PatternError{Pattern: pattern, Reason: fmt.Sprintf(format, args...)}
}

// FieldError describes a single field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationError is the structured failure produced by a Validator. It
// names the facet that failed and every failing field within it.
type ValidationError struct {
	Facet  Facet        `json:"facet"`
	Fields []FieldError `json:"fields"`
}

// Error summarizes the failure for logs; the structured form is what goes
// on the wire.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("loom: %s validation failed: %s: %s", e.Facet, e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("loom: %s validation failed: %d field(s)", e.Facet, len(e.Fields))
}

// StatusCode returns 400 Bad Request.
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// ChainProtocolError reports middleware that broke the chain contract:
// calling next() twice in one invocation, or mutating the response after
// finalization. It is a programming error, reported immediately instead of
// double-executing downstream stages.
type ChainProtocolError struct {
	Stage  string
	Reason string
}

// Error returns the stage and the violated rule.
func (e *ChainProtocolError) Error() string {
	return fmt.Sprintf("loom: chain protocol violation in %s: %s", e.Stage, e.Reason)
}

// StatusCode returns 500 Internal Server Error.
func (e *ChainProtocolError) StatusCode() int { return http.StatusInternalServerError }

// HandlerError wraps a panic recovered from a middleware or handler so the
// error terminal sees a regular error value.
type HandlerError struct {
	Recovered any
	Stack     []byte
}

// Error returns the recovered panic value.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("loom: handler panic: %v", e.Recovered)
}

// StatusCode returns 500 Internal Server Error.
func (e *HandlerError) StatusCode() int { return http.StatusInternalServerError }

// HTTPError is an error with an HTTP status code. Returning one from a
// handler produces a problem-details response with that status.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

// ProblemDetail is an RFC 9457 problem details response. Not-found,
// validation, and unexpected errors are all rendered in this shape.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string       `json:"type,omitempty"`
	Title    string       `json:"title,omitempty"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Facet    Facet        `json:"facet,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }
