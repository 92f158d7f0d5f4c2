// Package session defines the uniform interface for file operations on a
// remote target, independent of the wire protocol behind it.
package session

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// Protocol selects the session implementation.
type Protocol string

// Supported protocols.
const (
	ProtocolFTP   Protocol = "ftp"
	ProtocolSFTP  Protocol = "sftp"
	ProtocolLocal Protocol = "local"
)

// ParseProtocol converts a user-supplied name into a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ftp":
		return ProtocolFTP, nil
	case "sftp", "ssh":
		return ProtocolSFTP, nil
	case "local", "file":
		return ProtocolLocal, nil
	default:
		return "", fmt.Errorf("unknown protocol: %q (expected ftp, sftp or local)", s)
	}
}

// DefaultPort returns the well-known port of the protocol, or 0 if it has none.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolFTP:
		return 21
	case ProtocolSFTP:
		return 22
	default:
		return 0
	}
}

// Entry is one child of a listed directory.
type Entry struct {
	Name  string
	IsDir bool
}

// Session is one authenticated connection to a remote target.
//
// Paths are remote paths with forward-slash separators. A Session is not safe
// for concurrent use.
type Session interface {
	// List returns the children of a directory. It fails with an error
	// matching fs.ErrNotExist when the directory does not exist.
	List(path string) ([]Entry, error)

	// MakeDir creates a single directory. An already existing directory is
	// not an error.
	MakeDir(path string) error

	// RemoveFile removes a file.
	RemoveFile(path string) error

	// RemoveDir removes an empty directory.
	RemoveDir(path string) error

	// Upload writes the full contents of r to path, replacing any existing file.
	Upload(r io.Reader, path string) error

	// Close releases the connection. Calling it again is a no-op.
	Close() error

	// String returns a human-readable description of the target.
	String() string
}

// Endpoint holds everything needed to open a session.
type Endpoint struct {
	// Protocol selects the implementation.
	Protocol Protocol

	// Host is the remote hostname or IP address.
	Host string

	// Port is the remote port. Zero means the protocol default.
	Port int

	// Username and Password authenticate the session.
	Username string
	Password string

	// KnownHostsFile enables SSH host key verification when set.
	KnownHostsFile string

	// Timeout bounds connection establishment. Zero means the library default.
	Timeout time.Duration
}

// Validate checks that the endpoint can be dialed.
func (e Endpoint) Validate() error {
	switch e.Protocol {
	case ProtocolFTP, ProtocolSFTP:
	case ProtocolLocal:
		return nil
	case "":
		return fmt.Errorf("protocol is required")
	default:
		return fmt.Errorf("unknown protocol: %q", e.Protocol)
	}

	var missing []string
	if strings.TrimSpace(e.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(e.Username) == "" {
		missing = append(missing, "username")
	}
	if e.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}
	if e.Port < 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port: %d", e.Port)
	}
	return nil
}

// EffectivePort returns Port, or the protocol default when Port is zero.
func (e Endpoint) EffectivePort() int {
	if e.Port == 0 {
		return e.Protocol.DefaultPort()
	}
	return e.Port
}

// Addr returns host:port for dialing.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.EffectivePort()))
}

// String returns a URL-like description without the password.
func (e Endpoint) String() string {
	if e.Protocol == ProtocolLocal {
		return "local://"
	}
	return fmt.Sprintf("%s://%s@%s", e.Protocol, e.Username, e.Addr())
}
