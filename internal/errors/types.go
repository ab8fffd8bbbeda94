// Package errors defines the error taxonomy of the tool-orchestration
// runtime. Tool outcomes (a tool ran and reported failure, or the requested
// tool does not exist) are recovered close to where they occur and never
// propagate as Go errors past the registry boundary; the types here cover the
// failures that do propagate: transport setup, protocol violations, and
// model-provider failures.
package errors

import (
	"errors"
	"fmt"
)

// ConnectionError indicates a tool server could not be reached: the process
// failed to spawn, or a remote endpoint stayed unreachable after all
// retry attempts.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("tool server %q unreachable: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err as a ConnectionError for the named server.
func NewConnectionError(server string, err error) *ConnectionError {
	return &ConnectionError{Server: server, Err: err}
}

// ProtocolError indicates a malformed inbound message or an unresolvable
// correlation id on a tool-server stream. A single ProtocolError never tears
// down the session; the reader logs it and continues.
type ProtocolError struct {
	Server string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error from %q: %s", e.Server, e.Detail)
}

// ModelProviderError indicates the language-model call itself failed (bad
// credential, quota, transport). Fatal to the current agent run.
type ModelProviderError struct {
	StatusCode int
	Err        error
}

func (e *ModelProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model provider error: %v", e.Err)
}

func (e *ModelProviderError) Unwrap() error { return e.Err }

// NewModelProviderError wraps err with an optional HTTP status code.
func NewModelProviderError(statusCode int, err error) *ModelProviderError {
	return &ModelProviderError{StatusCode: statusCode, Err: err}
}

// IsConnection reports whether err is (or wraps) a ConnectionError.
func IsConnection(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsProtocol reports whether err is (or wraps) a ProtocolError.
func IsProtocol(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

// IsModelProvider reports whether err is (or wraps) a ModelProviderError.
func IsModelProvider(err error) bool {
	var target *ModelProviderError
	return errors.As(err, &target)
}
