// Package local provides a session backed by a filesystem reachable from this
// machine: a local directory, a mounted share, or an in-memory afero.Fs.
package local

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/syncerr"
)

var (
	errNotDir   = errors.New("not a directory")
	errIsDir    = errors.New("is a directory")
	errNotEmpty = errors.New("directory not empty")
)

// Session performs session operations on an afero.Fs.
type Session struct {
	fs     afero.Fs
	root   string
	logger *log.Logger
	closed bool
}

// Option configures the local session.
type Option func(*Session)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(s *Session) {
		s.fs = fsys
	}
}

// WithRoot resolves every remote path below root.
func WithRoot(root string) Option {
	return func(s *Session) {
		s.root = root
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// New creates a new local session.
func New(opts ...Option) *Session {
	s := &Session{
		fs:     afero.NewOsFs(),
		logger: log.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// resolve maps a remote path onto the backing filesystem.
func (s *Session) resolve(p string) string {
	if s.root == "" {
		return filepath.FromSlash(p)
	}
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+p)))
}

func (s *Session) isDir(p string) (bool, error) {
	info, err := s.fs.Stat(p)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// List returns the children of a directory.
func (s *Session) List(p string) ([]session.Entry, error) {
	if s.closed {
		return nil, syncerr.Closed("list", p)
	}

	dir := s.resolve(p)
	isDir, err := s.isDir(dir)
	if err != nil {
		return nil, syncerr.RemoteIO("list", p, err)
	}
	if !isDir {
		return nil, syncerr.RemoteIO("list", p, errNotDir)
	}

	infos, err := afero.ReadDir(s.fs, dir)
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

// MakeDir creates a single directory. The parent must already exist.
func (s *Session) MakeDir(p string) error {
	if s.closed {
		return syncerr.Closed("mkdir", p)
	}

	dir := s.resolve(p)

	// afero.MemMapFs creates missing parents, a real server does not.
	if parent := filepath.Dir(dir); parent != dir {
		isDir, err := s.isDir(parent)
		if err != nil {
			return syncerr.RemoteIO("mkdir", p, err)
		}
		if !isDir {
			return syncerr.RemoteIO("mkdir", p, errNotDir)
		}
	}

	err := s.fs.Mkdir(dir, 0o755)
	if err == nil {
		s.logger.Debug("created directory", "path", p)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		if isDir, statErr := s.isDir(dir); statErr == nil && isDir {
			return nil
		}
	}
	return syncerr.RemoteIO("mkdir", p, err)
}

// RemoveFile removes a single file.
func (s *Session) RemoveFile(p string) error {
	if s.closed {
		return syncerr.Closed("remove", p)
	}

	name := s.resolve(p)
	info, err := lstat(s.fs, name)
	if err != nil {
		return syncerr.RemoteIO("remove", p, err)
	}
	if info.IsDir() {
		return syncerr.RemoteIO("remove", p, errIsDir)
	}
	if err := s.fs.Remove(name); err != nil {
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

	dir := s.resolve(p)
	isDir, err := s.isDir(dir)
	if err != nil {
		return syncerr.RemoteIO("rmdir", p, err)
	}
	if !isDir {
		return syncerr.RemoteIO("rmdir", p, errNotDir)
	}

	// afero.MemMapFs removes non-empty directories, a real server does not.
	empty, err := afero.IsEmpty(s.fs, dir)
	if err != nil {
		return syncerr.RemoteIO("rmdir", p, err)
	}
	if !empty {
		return syncerr.RemoteIO("rmdir", p, errNotEmpty)
	}

	if err := s.fs.Remove(dir); err != nil {
		return syncerr.RemoteIO("rmdir", p, err)
	}
	s.logger.Debug("removed directory", "path", p)
	return nil
}

// Upload writes the contents of r to a file, replacing it if it exists.
func (s *Session) Upload(r io.Reader, p string) error {
	if s.closed {
		return syncerr.Closed("upload", p)
	}

	name := s.resolve(p)
	isDir, err := s.isDir(filepath.Dir(name))
	if err != nil {
		return syncerr.RemoteIO("upload", p, err)
	}
	if !isDir {
		return syncerr.RemoteIO("upload", p, errNotDir)
	}

	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
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

// Close marks the session closed. Further calls are no-ops.
func (s *Session) Close() error {
	s.closed = true
	return nil
}

// String returns a description of the session target.
func (s *Session) String() string {
	if s.root == "" {
		return "local://"
	}
	return "local://" + filepath.ToSlash(s.root)
}

func lstat(fsys afero.Fs, name string) (fs.FileInfo, error) {
	if lst, ok := fsys.(afero.Lstater); ok {
		info, _, err := lst.LstatIfPossible(name)
		return info, err
	}
	return fsys.Stat(name)
}

// Ensure Session implements the session.Session interface.
var _ session.Session = (*Session)(nil)
