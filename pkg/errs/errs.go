// Package errs defines the typed error kinds the core surfaces to callers.
// Core operations never log or print; they return one of these so that a
// presentation layer can decide how to render it and which exit code to use.
package errs

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind identifies the category of a core error, independent of message text.
type Kind int

const (
	KindNotFound Kind = iota
	KindConflict
	KindInvalidInput
	KindSpawnFailed
	KindStopFailed
	KindCorruptState
	KindIOFailure
	KindAlreadyRunning
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindInvalidInput:
		return "InvalidInput"
	case KindSpawnFailed:
		return "SpawnFailed"
	case KindStopFailed:
		return "StopFailed"
	case KindCorruptState:
		return "CorruptState"
	case KindIOFailure:
		return "IOFailure"
	case KindAlreadyRunning:
		return "AlreadyRunning"
	default:
		return "Unknown"
	}
}

// Error is the concrete type behind every error the core returns. It wraps
// an optional cause with go-errors so a stack trace is available to debug
// logging without ever being part of Error()'s message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Stack returns a formatted stack trace of where the error was wrapped, for
// use in debug logs only.
func (e *Error) Stack() string {
	if wrapped, ok := e.cause.(*goerrors.Error); ok {
		return string(wrapped.Stack())
	}
	return ""
}

func newErr(kind Kind, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = goerrors.Wrap(cause, 1)
	}
	return &Error{Kind: kind, Message: message, cause: wrapped}
}

// NotFound reports that no process/group/port matches the given selector.
func NotFound(selector string) error {
	return newErr(KindNotFound, fmt.Sprintf("no match for %q", selector), nil)
}

// Conflict reports that a name or port is already in use.
func Conflict(kind, key string) error {
	return newErr(KindConflict, fmt.Sprintf("%s %q already in use", kind, key), nil)
}

// InvalidInput reports a malformed request: empty name, bad command, out-of-range port.
func InvalidInput(reason string) error {
	return newErr(KindInvalidInput, reason, nil)
}

// SpawnFailed reports that the OS refused to create the child.
func SpawnFailed(cause error) error {
	return newErr(KindSpawnFailed, "spawn failed", cause)
}

// StopFailed reports that signaling or waiting for a child to exit failed.
func StopFailed(cause error) error {
	return newErr(KindStopFailed, "stop failed", cause)
}

// CorruptState reports that the Store's backing file could not be parsed.
func CorruptState(path string, detail string) error {
	return newErr(KindCorruptState, fmt.Sprintf("%s: %s", path, detail), nil)
}

// IOFailure reports a filesystem error encountered during save/open.
func IOFailure(path string, cause error) error {
	return newErr(KindIOFailure, path, cause)
}

// AlreadyRunning reports that a daemon start was attempted while one is live.
func AlreadyRunning() error {
	return newErr(KindAlreadyRunning, "daemon already running", nil)
}

// Is reports whether err is an *Error of the given kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if se, ok := err.(*Error); ok {
			e = se
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// MultiError aggregates failures from a bulk operation (group start/stop/restart,
// stopall, or a restart-supervisor sweep) without short-circuiting. Each entry
// keeps the index of the target it applies to within the snapshot that was iterated.
type MultiError struct {
	Errors []IndexedError
}

// IndexedError pairs a target's position in a bulk operation with its failure.
type IndexedError struct {
	Index int
	Name  string
	Err   error
}

func (m *MultiError) Add(index int, name string, err error) {
	if err == nil {
		return
	}
	m.Errors = append(m.Errors, IndexedError{Index: index, Name: name, Err: err})
}

func (m *MultiError) HasErrors() bool { return len(m.Errors) > 0 }

// ErrorOrNil returns m as an error if it holds any failures, else nil — so
// callers can do `return multiErr.ErrorOrNil()` without a nil-but-typed pitfall.
func (m *MultiError) ErrorOrNil() error {
	if m == nil || !m.HasErrors() {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return fmt.Sprintf("%s: %v", m.Errors[0].Name, m.Errors[0].Err)
	}
	s := fmt.Sprintf("%d of the targeted operations failed:", len(m.Errors))
	for _, e := range m.Errors {
		s += fmt.Sprintf("\n  [%d] %s: %v", e.Index, e.Name, e.Err)
	}
	return s
}
