// Package sftp provides a session over the SSH File Transfer Protocol.
package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/syncerr"
)

var errIsDir = errors.New("is a directory")

// Session is an SFTP client running over an authenticated SSH connection.
type Session struct {
	ssh      *ssh.Client
	client   *sftp.Client
	endpoint session.Endpoint
	logger   *log.Logger
	closed   bool
}

// Option configures the SFTP session.
type Option func(*Session)

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// Dial opens an SSH connection with password authentication and starts the
// sftp subsystem on it.
func Dial(ctx context.Context, ep session.Endpoint, opts ...Option) (*Session, error) {
	s := &Session{
		endpoint: ep,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	hostKeyCallback, err := hostKeyCallback(ep.KnownHostsFile)
	if err != nil {
		return nil, syncerr.Connection("known_hosts", ep.KnownHostsFile, err)
	}

	config := &ssh.ClientConfig{
		User:            ep.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(ep.Password)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         ep.Timeout,
	}

	s.logger.Debug("dialing", "target", ep.String())
	dialer := net.Dialer{Timeout: ep.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, syncerr.Connection("dial", ep.String(), err)
	}

	if ep.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(ep.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, ep.Addr(), config)
	if err != nil {
		conn.Close()
		return nil, syncerr.Connection("handshake", ep.String(), err)
	}
	_ = conn.SetDeadline(time.Time{})
	s.ssh = ssh.NewClient(c, chans, reqs)

	s.client, err = sftp.NewClient(s.ssh)
	if err != nil {
		s.ssh.Close()
		return nil, syncerr.Connection("sftp", ep.String(), err)
	}

	s.logger.Debug("connected", "target", ep.String())
	return s, nil
}

func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(knownHostsFile)
}

// List returns the children of a directory.
func (s *Session) List(p string) ([]session.Entry, error) {
	if s.closed {
		return nil, syncerr.Closed("list", p)
	}

	infos, err := s.client.ReadDir(p)
	if err != nil {
		return nil, syncerr.RemoteIO("list", p, err)
	}

	entries := make([]session.Entry, 0, len(infos))
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		entries = append(entries, session.Entry{Name: info.Name(), IsDir: info.IsDir()})
	}
	return entries, nil
}

// MakeDir creates a single directory. An existing directory is not an error.
func (s *Session) MakeDir(p string) error {
	if s.closed {
		return syncerr.Closed("mkdir", p)
	}

	err := s.client.Mkdir(p)
	if err == nil {
		s.logger.Debug("created directory", "path", p)
		return nil
	}

	// SFTP v3 reports an existing directory as a generic failure.
	if info, statErr := s.client.Stat(p); statErr == nil && info.IsDir() {
		return nil
	}
	return syncerr.RemoteIO("mkdir", p, err)
}

// RemoveFile removes a file or symlink.
func (s *Session) RemoveFile(p string) error {
	if s.closed {
		return syncerr.Closed("remove", p)
	}

	// Client.Remove falls back to rmdir, so rule directories out first.
	info, err := s.client.Lstat(p)
	if err != nil {
		return syncerr.RemoteIO("remove", p, err)
	}
	if info.IsDir() {
		return syncerr.RemoteIO("remove", p, errIsDir)
	}

	if err := s.client.Remove(p); err != nil {
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
	if err := s.client.RemoveDirectory(p); err != nil {
		return syncerr.RemoteIO("rmdir", p, err)
	}
	s.logger.Debug("removed directory", "path", p)
	return nil
}

// Upload writes the contents of r to path, truncating any existing file.
func (s *Session) Upload(r io.Reader, p string) error {
	if s.closed {
		return syncerr.Closed("upload", p)
	}

	f, err := s.client.Create(p)
	if err != nil {
		return syncerr.RemoteIO("upload", p, err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return syncerr.RemoteIO("upload", p, fmt.Errorf("write: %w", err))
	}
	if err := f.Close(); err != nil {
		return syncerr.RemoteIO("upload", p, err)
	}

	s.logger.Debug("uploaded file", "path", p, "bytes", n)
	return nil
}

// Close shuts down the sftp client and then the SSH connection.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Debug("closing", "target", s.endpoint.String())

	var errs []error
	if err := s.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sftp client: %w", err))
	}
	if err := s.ssh.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("ssh connection: %w", err))
	}
	return errors.Join(errs...)
}

// String returns a description of the connection.
func (s *Session) String() string {
	return s.endpoint.String()
}

// Ensure Session implements the session.Session interface.
var _ session.Session = (*Session)(nil)
