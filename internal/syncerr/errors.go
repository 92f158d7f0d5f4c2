// Package syncerr defines the error kinds shared by sessions, tree operations
// and the sync orchestrator.
package syncerr

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrConnection means a session could not be opened (network or authentication).
	ErrConnection = errors.New("connection error")

	// ErrRemoteIO means a single remote operation failed.
	ErrRemoteIO = errors.New("remote I/O error")

	// ErrLocalPath means a local path is missing, unreadable or not a directory.
	ErrLocalPath = errors.New("local path error")

	// ErrSessionClosed means an operation was attempted on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// Error carries the kind of a failure together with the operation and path
// that caused it.
type Error struct {
	// Kind is one of the ErrXxx sentinels above.
	Kind error

	// Op names the failed operation (dial, list, mkdir, upload, ...).
	Op string

	// Path is the remote or local path involved, if any.
	Path string

	// Err is the underlying cause.
	Err error
}

// New returns an *Error of the given kind.
func New(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Path)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Connection wraps err as a connection failure.
func Connection(op, target string, err error) error {
	return New(ErrConnection, op, target, err)
}

// RemoteIO wraps err as a failed remote operation.
func RemoteIO(op, path string, err error) error {
	return New(ErrRemoteIO, op, path, err)
}

// LocalPath wraps err as a local path failure.
func LocalPath(op, path string, err error) error {
	return New(ErrLocalPath, op, path, err)
}

// Closed returns the error for an operation attempted after Close.
func Closed(op, path string) error {
	return New(ErrSessionClosed, op, path, nil)
}

// KindOf returns the kind of err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrConnection, ErrRemoteIO, ErrLocalPath, ErrSessionClosed} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
