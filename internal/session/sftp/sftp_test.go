package sftp

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/syncerr"
)

const testPassword = "tiger"

// startServer runs an in-process SSH server with an sftp subsystem and
// returns an endpoint pointing at it.
func startServer(t *testing.T) session.Endpoint {
	t.Helper()

	server, err := wish.NewServer(
		wish.WithHostKeyPath(filepath.Join(t.TempDir(), "id_ed25519")),
		wish.WithPasswordAuth(func(ctx ssh.Context, password string) bool {
			return password == testPassword
		}),
		wish.WithSubsystem("sftp", func(s ssh.Session) {
			srv, err := sftp.NewServer(s)
			if err != nil {
				return
			}
			if err := srv.Serve(); err == io.EOF {
				_ = srv.Close()
			}
		}),
	)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			t.Logf("ssh server: %v", err)
		}
	}()
	t.Cleanup(func() { _ = server.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return session.Endpoint{
		Protocol: session.ProtocolSFTP,
		Host:     host,
		Port:     p,
		Username: "deploy",
		Password: testPassword,
		Timeout:  5 * time.Second,
	}
}

func dial(t *testing.T, ep session.Endpoint) *Session {
	t.Helper()
	s, err := Dial(context.Background(), ep, WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDialWrongPassword(t *testing.T) {
	ep := startServer(t)
	ep.Password = "wrong"

	_, err := Dial(context.Background(), ep, WithLogger(log.New(io.Discard)))

	assert.ErrorIs(t, err, syncerr.ErrConnection)
}

func TestDialUnknownHostKey(t *testing.T) {
	ep := startServer(t)
	ep.KnownHostsFile = filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(ep.KnownHostsFile, nil, 0o600))

	_, err := Dial(context.Background(), ep, WithLogger(log.New(io.Discard)))

	assert.ErrorIs(t, err, syncerr.ErrConnection)
}

func TestDialRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	_, err = Dial(context.Background(), session.Endpoint{
		Protocol: session.ProtocolSFTP,
		Host:     "127.0.0.1",
		Port:     addr.Port,
		Username: "deploy",
		Password: testPassword,
		Timeout:  time.Second,
	}, WithLogger(log.New(io.Discard)))

	assert.ErrorIs(t, err, syncerr.ErrConnection)
}

func TestSessionOperations(t *testing.T) {
	s := dial(t, startServer(t))
	root := filepath.ToSlash(t.TempDir())
	www := root + "/www"

	require.NoError(t, s.MakeDir(www))
	require.NoError(t, s.MakeDir(www), "existing directory must not fail")
	require.NoError(t, s.MakeDir(www+"/css"))
	require.NoError(t, s.Upload(strings.NewReader("<h1>hi</h1>"), www+"/index.html"))
	require.NoError(t, s.Upload(strings.NewReader("v2"), www+"/index.html"))

	data, err := os.ReadFile(filepath.FromSlash(www + "/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	entries, err := s.List(www)
	require.NoError(t, err)
	assert.ElementsMatch(t, []session.Entry{
		{Name: "css", IsDir: true},
		{Name: "index.html", IsDir: false},
	}, entries)

	assert.ErrorIs(t, s.RemoveFile(www+"/css"), syncerr.ErrRemoteIO)
	assert.ErrorIs(t, s.RemoveDir(www), syncerr.ErrRemoteIO, "non-empty directory")

	require.NoError(t, s.RemoveFile(www+"/index.html"))
	require.NoError(t, s.RemoveDir(www+"/css"))
	require.NoError(t, s.RemoveDir(www))

	_, err = s.List(www)
	assert.ErrorIs(t, err, syncerr.ErrRemoteIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMakeDirOverFileFails(t *testing.T) {
	s := dial(t, startServer(t))
	name := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))

	assert.ErrorIs(t, s.MakeDir(filepath.ToSlash(name)), syncerr.ErrRemoteIO)
}

func TestCloseTwiceAndUseAfterClose(t *testing.T) {
	ep := startServer(t)
	s, err := Dial(context.Background(), ep, WithLogger(log.New(io.Discard)))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.List("/")
	assert.ErrorIs(t, err, syncerr.ErrSessionClosed)
	assert.ErrorIs(t, s.MakeDir("/x"), syncerr.ErrSessionClosed)
	assert.Equal(t, ep.String(), s.String())
}
