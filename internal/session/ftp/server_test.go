package ftp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/tree"
)

// listServer is a minimal FTP control server. It serves ls-style listings
// from a fixed table, hides dotfiles unless LIST is given -a, and answers a
// missing directory with an empty 226 listing the way vsftpd does.
type listServer struct {
	ln       net.Listener
	listings map[string][]string

	mu       sync.Mutex
	commands []string
	removed  []string
}

func startListServer(t *testing.T, listings map[string][]string) *listServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &listServer{ln: ln, listings: listings}
	t.Cleanup(func() { _ = ln.Close() })
	go srv.serve()
	return srv
}

func (srv *listServer) endpoint() session.Endpoint {
	addr := srv.ln.Addr().(*net.TCPAddr)
	return session.Endpoint{
		Protocol: session.ProtocolFTP,
		Host:     "127.0.0.1",
		Port:     addr.Port,
		Username: "deploy",
		Password: "secret",
		Timeout:  5 * time.Second,
	}
}

func (srv *listServer) serve() {
	conn, err := srv.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(format string, args ...any) {
		fmt.Fprintf(conn, format+"\r\n", args...)
	}

	var data net.Listener
	reply("220 ready")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb, arg, _ := strings.Cut(line, " ")

		srv.mu.Lock()
		srv.commands = append(srv.commands, line)
		srv.mu.Unlock()

		switch strings.ToUpper(verb) {
		case "USER":
			reply("331 password please")
		case "PASS":
			reply("230 logged in")
		case "TYPE":
			reply("200 binary")
		case "EPSV":
			data, err = net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				reply("425 no data port")
				continue
			}
			reply("229 Entering Extended Passive Mode (|||%d|)", data.Addr().(*net.TCPAddr).Port)
		case "LIST":
			reply("150 here comes the listing")
			dc, err := data.Accept()
			_ = data.Close()
			if err != nil {
				return
			}
			for _, l := range srv.list(arg) {
				fmt.Fprintf(dc, "%s\r\n", l)
			}
			_ = dc.Close()
			reply("226 transfer done")
		case "RMD":
			srv.mu.Lock()
			srv.removed = append(srv.removed, arg)
			srv.mu.Unlock()
			reply("250 removed")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func (srv *listServer) list(arg string) []string {
	dir, all := arg, false
	if rest, ok := strings.CutPrefix(arg, "-a"); ok {
		dir, all = strings.TrimSpace(rest), true
	}

	var lines []string
	for _, l := range srv.listings[dir] {
		name := l[strings.LastIndex(l, " ")+1:]
		if strings.HasPrefix(name, ".") && !all {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

func (srv *listServer) listCommands() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	var out []string
	for _, c := range srv.commands {
		if strings.HasPrefix(c, "LIST") {
			out = append(out, c)
		}
	}
	return out
}

func (srv *listServer) removedDirs() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]string(nil), srv.removed...)
}

func lsDir(name string) string  { return "drwxr-xr-x    2 ftp      ftp          4096 Jan 02 10:00 " + name }
func lsFile(name string) string { return "-rw-r--r--    1 ftp      ftp            12 Jan 02 10:00 " + name }

func TestDialListsHiddenFiles(t *testing.T) {
	srv := startListServer(t, map[string][]string{
		"/site": {lsDir("."), lsDir(".."), lsFile(".htaccess"), lsFile("index.html"), lsDir(".well-known")},
	})

	s, err := Dial(context.Background(), srv.endpoint(), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.List("/site")
	require.NoError(t, err)
	assert.ElementsMatch(t, []session.Entry{
		{Name: ".htaccess"},
		{Name: "index.html"},
		{Name: ".well-known", IsDir: true},
	}, entries)

	assert.Equal(t, []string{"LIST -a /site"}, srv.listCommands())
}

func TestDialEraseMissingDirectory(t *testing.T) {
	srv := startListServer(t, map[string][]string{
		"/": {lsDir("."), lsDir(".."), lsDir("other")},
	})

	s, err := Dial(context.Background(), srv.endpoint(), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, tree.Erase(s, "/site"))

	assert.Empty(t, srv.removedDirs())
	assert.Equal(t, []string{"LIST -a /site", "LIST -a /"}, srv.listCommands())
}
