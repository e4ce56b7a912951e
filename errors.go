package agentwire

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a turn is terminated by user cancellation.
// Cancellation is a recognized termination path, not a failure; callers
// should finalize with partial output rather than surface this to the user
// as an error.
var ErrCancelled = errors.New("request cancelled")

// ErrorCategory classifies errors by how they should be handled.
type ErrorCategory string

const (
	// ErrorTransport indicates a network-level failure: connection refused,
	// non-2xx status, missing response body. Surfaced as a single error-text
	// finalization; never retried automatically mid-stream.
	ErrorTransport ErrorCategory = "transport"

	// ErrorProtocol indicates the agent returned a JSON-RPC error envelope.
	// The stream is not aborted pre-emptively; remaining frames are still
	// processed.
	ErrorProtocol ErrorCategory = "protocol"

	// ErrorParse indicates a malformed frame. Recovered locally: the line is
	// skipped and processing continues.
	ErrorParse ErrorCategory = "parse"

	// ErrorSink indicates the UI ingestion call failed. Logged by callers,
	// which degrade to single-shot emission rather than abort the session.
	ErrorSink ErrorCategory = "sink"
)

// CategorizedError is an error carrying handling metadata.
type CategorizedError interface {
	error
	Category() ErrorCategory
	// Transient reports whether the operation may be retried. Only
	// connection-establishment errors qualify; mid-stream failures never do.
	Transient() bool
}

// TransportError wraps a network-level failure.
type TransportError struct {
	Op         string // "connect", "read", "cancel-notify", "fetch-card"
	StatusCode int    // HTTP status, 0 if the request never completed
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Category returns ErrorTransport.
func (e *TransportError) Category() ErrorCategory { return ErrorTransport }

// Transient reports whether the failure is worth retrying. Server errors and
// rate limits are; client errors are not.
func (e *TransportError) Transient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ProtocolError wraps a JSON-RPC error object decoded from the stream.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("agent error %d: %s", e.Code, e.Message)
}

// Category returns ErrorProtocol.
func (e *ProtocolError) Category() ErrorCategory { return ErrorProtocol }

// Transient returns false; protocol errors come from the agent itself.
func (e *ProtocolError) Transient() bool { return false }

// ParseError wraps a malformed frame line.
type ParseError struct {
	Line  string // offending payload, possibly truncated
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Category returns ErrorParse.
func (e *ParseError) Category() ErrorCategory { return ErrorParse }

// Transient returns false; a bad line stays bad.
func (e *ParseError) Transient() bool { return false }

// SinkError wraps a failed UI ingestion call.
type SinkError struct {
	Call  string // "add-message", "add-chunk"
	Cause error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Call, e.Cause)
}

func (e *SinkError) Unwrap() error { return e.Cause }

// Category returns ErrorSink.
func (e *SinkError) Category() ErrorCategory { return ErrorSink }

// Transient returns false; callers degrade instead of retrying.
func (e *SinkError) Transient() bool { return false }

// IsTransient reports whether err (or any wrapped error) is a transient
// categorized error.
func IsTransient(err error) bool {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Transient()
	}
	return false
}

// CategoryOf returns the category of err, or the empty string if err carries
// no category.
func CategoryOf(err error) ErrorCategory {
	var ce CategorizedError
	if errors.As(err, &ce) {
		return ce.Category()
	}
	return ""
}
