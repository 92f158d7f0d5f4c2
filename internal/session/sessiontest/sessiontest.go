// Package sessiontest provides a Session wrapper that records calls and
// injects failures, for testing code built on top of sessions.
package sessiontest

import (
	"io"
	"sync"

	"github.com/eugenetaranov/sitepush/internal/session"
)

// Op names a session operation.
type Op string

// Recorded operations.
const (
	OpList       Op = "list"
	OpMakeDir    Op = "mkdir"
	OpRemoveFile Op = "remove"
	OpRemoveDir  Op = "rmdir"
	OpUpload     Op = "upload"
	OpClose      Op = "close"
)

// Call is one recorded invocation.
type Call struct {
	Op   Op
	Path string
}

// FaultFunc decides whether the n-th call (1-based, per operation) to op on
// path fails. A nil return lets the call through.
type FaultFunc func(op Op, path string, n int) error

// Session wraps another Session, recording every call.
type Session struct {
	inner session.Session
	fault FaultFunc

	mu     sync.Mutex
	calls  []Call
	counts map[Op]int
}

// Wrap returns a recording wrapper around inner. fault may be nil.
func Wrap(inner session.Session, fault FaultFunc) *Session {
	return &Session{
		inner:  inner,
		fault:  fault,
		counts: make(map[Op]int),
	}
}

// FailNth fails the n-th call to op with err.
func FailNth(op Op, n int, err error) FaultFunc {
	return func(gotOp Op, _ string, gotN int) error {
		if gotOp == op && gotN == n {
			return err
		}
		return nil
	}
}

// FailPath fails every call to op on path with err.
func FailPath(op Op, path string, err error) FaultFunc {
	return func(gotOp Op, gotPath string, _ int) error {
		if gotOp == op && gotPath == path {
			return err
		}
		return nil
	}
}

func (s *Session) record(op Op, path string) error {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Op: op, Path: path})
	s.counts[op]++
	n := s.counts[op]
	s.mu.Unlock()

	if s.fault == nil {
		return nil
	}
	return s.fault(op, path, n)
}

// Calls returns a copy of every recorded call in order.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many times op was called.
func (s *Session) Count(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

// Writes returns the number of mutating calls (mkdir, remove, rmdir, upload).
func (s *Session) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[OpMakeDir] + s.counts[OpRemoveFile] + s.counts[OpRemoveDir] + s.counts[OpUpload]
}

// List records the call and lists through the wrapped session.
func (s *Session) List(path string) ([]session.Entry, error) {
	if err := s.record(OpList, path); err != nil {
		return nil, err
	}
	return s.inner.List(path)
}

// MakeDir records the call and creates the directory unless a fault fires.
func (s *Session) MakeDir(path string) error {
	if err := s.record(OpMakeDir, path); err != nil {
		return err
	}
	return s.inner.MakeDir(path)
}

// RemoveFile records the call and removes the file unless a fault fires.
func (s *Session) RemoveFile(path string) error {
	if err := s.record(OpRemoveFile, path); err != nil {
		return err
	}
	return s.inner.RemoveFile(path)
}

// RemoveDir records the call and removes the directory unless a fault fires.
func (s *Session) RemoveDir(path string) error {
	if err := s.record(OpRemoveDir, path); err != nil {
		return err
	}
	return s.inner.RemoveDir(path)
}

// Upload records the call and uploads unless a fault fires.
func (s *Session) Upload(r io.Reader, path string) error {
	if err := s.record(OpUpload, path); err != nil {
		return err
	}
	return s.inner.Upload(r, path)
}

// Close records the call and always closes the wrapped session.
func (s *Session) Close() error {
	_ = s.record(OpClose, "")
	return s.inner.Close()
}

// String describes the wrapped session.
func (s *Session) String() string {
	return s.inner.String()
}

var _ session.Session = (*Session)(nil)
