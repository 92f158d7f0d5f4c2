// Package ftp provides a session over plain FTP.
package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/textproto"
	"path"

	"github.com/charmbracelet/log"
	goftp "github.com/jlaffaye/ftp"

	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/syncerr"
)

// serverConn is the part of *goftp.ServerConn the session uses.
type serverConn interface {
	List(path string) ([]*goftp.Entry, error)
	MakeDir(path string) error
	Delete(path string) error
	RemoveDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// Session is an authenticated FTP control connection.
type Session struct {
	conn     serverConn
	endpoint session.Endpoint
	logger   *log.Logger
	closed   bool
}

// Option configures the FTP session.
type Option func(*Session)

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Dial connects to the endpoint and logs in.
func Dial(ctx context.Context, ep session.Endpoint, opts ...Option) (*Session, error) {
	s := &Session{
		endpoint: ep,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// LIST -a so that dotfiles such as .htaccess are listed and erased.
	dialOpts := []goftp.DialOption{
		goftp.DialWithContext(ctx),
		goftp.DialWithForceListHidden(true),
	}
	if ep.Timeout > 0 {
		dialOpts = append(dialOpts, goftp.DialWithTimeout(ep.Timeout))
	}

	s.logger.Debug("dialing", "target", ep.String())
	conn, err := goftp.Dial(ep.Addr(), dialOpts...)
	if err != nil {
		return nil, syncerr.Connection("dial", ep.String(), err)
	}

	if err := conn.Login(ep.Username, ep.Password); err != nil {
		_ = conn.Quit()
		return nil, syncerr.Connection("login", ep.String(), err)
	}

	s.conn = conn
	s.logger.Debug("logged in", "target", ep.String())
	return s, nil
}

// List returns the children of a directory.
func (s *Session) List(p string) ([]session.Entry, error) {
	if s.closed {
		return nil, syncerr.Closed("list", p)
	}

	raw, err := s.conn.List(p)
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: %w", fs.ErrNotExist, err)
		}
		return nil, syncerr.RemoteIO("list", p, err)
	}

	entries := toEntries(raw)
	if len(entries) == 0 && !isTop(p) && !s.dirExists(p) {
		// Some servers answer LIST of a missing directory with an empty
		// listing and a 226 reply.
		return nil, syncerr.RemoteIO("list", p, fmt.Errorf("%w: no such directory", fs.ErrNotExist))
	}
	return entries, nil
}

func isTop(p string) bool {
	switch path.Clean(p) {
	case "/", ".":
		return true
	default:
		return false
	}
}

// MakeDir creates a single directory. An existing directory is not an error.
func (s *Session) MakeDir(p string) error {
	if s.closed {
		return syncerr.Closed("mkdir", p)
	}

	err := s.conn.MakeDir(p)
	if err == nil {
		s.logger.Debug("created directory", "path", p)
		return nil
	}

	// Servers disagree on the reply for an existing directory, so ask the
	// parent listing instead of trusting the code.
	if replyCode(err) != 0 && s.dirExists(p) {
		return nil
	}
	return syncerr.RemoteIO("mkdir", p, err)
}

func (s *Session) dirExists(p string) bool {
	entries, err := s.conn.List(path.Dir(p))
	if err != nil {
		return false
	}
	name := path.Base(p)
	for _, e := range toEntries(entries) {
		if e.Name == name {
			return e.IsDir
		}
	}
	return false
}

// RemoveFile deletes a file.
func (s *Session) RemoveFile(p string) error {
	if s.closed {
		return syncerr.Closed("remove", p)
	}
	if err := s.conn.Delete(p); err != nil {
		return syncerr.RemoteIO("remove", p, err)
	}
	s.logger.Debug("removed file", "path", p)
	return nil
}

// RemoveDir removes an empty directory.
func (s *Session) RemoveDir(p string) error {
	if s.closed {
		return syncerr.Closed("rmdir", p)
	}
	if err := s.conn.RemoveDir(p); err != nil {
		return syncerr.RemoteIO("rmdir", p, err)
	}
	s.logger.Debug("removed directory", "path", p)
	return nil
}

// Upload stores the contents of r at path in binary mode.
func (s *Session) Upload(r io.Reader, p string) error {
	if s.closed {
		return syncerr.Closed("upload", p)
	}
	if err := s.conn.Stor(p, r); err != nil {
		return syncerr.RemoteIO("upload", p, err)
	}
	s.logger.Debug("uploaded file", "path", p)
	return nil
}

// Close sends QUIT and closes the control connection.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("closing", "target", s.endpoint.String())
	return s.conn.Quit()
}

// String returns a description of the connection.
func (s *Session) String() string {
	return s.endpoint.String()
}

// toEntries converts a listing, dropping the . and .. pseudo entries.
func toEntries(raw []*goftp.Entry) []session.Entry {
	entries := make([]session.Entry, 0, len(raw))
	for _, e := range raw {
		if e == nil {
			continue
		}
		name := path.Base(e.Name)
		if name == "." || name == ".." || name == "/" {
			continue
		}
		entries = append(entries, session.Entry{
			Name:  name,
			IsDir: e.Type == goftp.EntryTypeFolder,
		})
	}
	return entries
}

// replyCode returns the FTP reply code carried by err, or 0.
func replyCode(err error) int {
	var te *textproto.Error
	if errors.As(err, &te) {
		return te.Code
	}
	return 0
}

func isNotFound(err error) bool {
	switch replyCode(err) {
	case goftp.StatusFileUnavailable, goftp.StatusFileActionIgnored:
		return true
	default:
		return false
	}
}

// Ensure Session implements the session.Session interface.
var _ session.Session = (*Session)(nil)
