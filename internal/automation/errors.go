// internal/automation/errors.go
package automation

import (
	"errors"
	"fmt"
)

// Messages surfaced in results and errors. The engine-facing fallbacks are
// used when a failed response carries no usable {error} field.
const (
	MsgUnknownError     = "Unknown error"
	MsgAutomationFailed = "Failed to execute automation"
	MsgDirectFallback   = "Failed to execute direct automation"
	MsgExecuteFallback  = "Failed to execute automation"
	MsgGenerateFallback = "Failed to generate actions"
	MsgGenerationFailed = "Failed to generate automation actions"
)

var (
	// ErrMissingOperation marks a wire action without an operation.
	ErrMissingOperation = errors.New("action is missing an operation")
	// ErrNilAction marks a nil entry in an outgoing action list.
	ErrNilAction = errors.New("action is nil")
)

// TransportError means no response was received from the engine.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError means the engine answered with a non-2xx status. Message is the
// engine's {error} text, or the fallback chosen when there was none.
type HTTPError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: engine returned status %d: %s", e.Op, e.StatusCode, e.Message)
}

// BodyParseError means a body was not the JSON the operation expected.
type BodyParseError struct {
	Op  string
	Err error
}

func (e *BodyParseError) Error() string {
	return fmt.Sprintf("%s: invalid response body: %v", e.Op, e.Err)
}

func (e *BodyParseError) Unwrap() error { return e.Err }

// GenerationError is returned by GenerateActions for any failure. Its text is
// fixed and safe to show to end users; the cause stays reachable through
// errors.As and errors.Unwrap for callers that want the detail.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string { return MsgGenerationFailed }

func (e *GenerationError) Unwrap() error { return e.Cause }

// describe reduces a failure to the text placed in Result.Error: the engine's
// message for HTTP failures, the underlying cause otherwise.
func describe(err error) string {
	var httpErr *HTTPError
	var transportErr *TransportError
	var parseErr *BodyParseError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &httpErr):
		return httpErr.Message
	case errors.As(err, &transportErr):
		return transportErr.Err.Error()
	case errors.As(err, &parseErr):
		return parseErr.Err.Error()
	default:
		return err.Error()
	}
}
