package manager

import (
	"github.com/modeld/inferd/internal/kv"
	"github.com/modeld/inferd/internal/lm"
)

// tooBusyError signals queue timeout/overflow.
type tooBusyError struct{ sessionID string }

func (e tooBusyError) Error() string { return "too busy: " + e.sessionID }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// sessionNotFoundError is returned when a requested session id names
// nothing the engine is tracking (after CloseSession, or before any turn
// has created it).
type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

// ErrSessionNotFound constructs a sessionNotFoundError.
func ErrSessionNotFound(id string) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether err indicates a missing session id.
func IsSessionNotFound(err error) bool {
	_, ok := err.(sessionNotFoundError)
	return ok
}

// dependencyUnavailableError signals a missing external dependency (model
// file, tokenizer file, execution provider).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed
// runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

// IsInvariantViolation reports whether err is one of the fatal KV-pairing
// or sequence-length invariant violations raised deeper in the stack
// (internal/kv, internal/lm). These indicate a bug in the model graph
// itself or this engine's wiring, never user input, so callers should
// treat them as 500s and log loudly rather than retry.
func IsInvariantViolation(err error) bool {
	switch err.(type) {
	case kv.InvariantViolationError, lm.InvariantViolationError:
		return true
	default:
		return false
	}
}

// toolFailureError wraps an error raised by a tool's Executor, so that "the
// tool ran and failed" can be told apart from "the tool call could not be
// parsed or dispatched." The agent orchestrator does not produce it.
type toolFailureError struct {
	tool string
	err  error
}

func (e toolFailureError) Error() string { return "tool " + e.tool + " failed: " + e.err.Error() }
func (e toolFailureError) Unwrap() error { return e.err }

// ErrToolFailure constructs a toolFailureError.
func ErrToolFailure(tool string, err error) error { return toolFailureError{tool: tool, err: err} }

// IsToolFailure reports whether err indicates a tool executor failure.
func IsToolFailure(err error) bool {
	_, ok := err.(toolFailureError)
	return ok
}
