package tree

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/eugenetaranov/sitepush/internal/session"
)

// Builder creates remote directory chains and remembers which directories it
// has already ensured, so repeated calls for siblings cost nothing.
type Builder struct {
	session session.Session
	known   map[string]bool
}

// NewBuilder returns a Builder for s.
func NewBuilder(s session.Session) *Builder {
	return &Builder{session: s, known: make(map[string]bool)}
}

// Ensure creates every missing segment of p, from the root down. Existing
// segments are not an error; any other failure is returned immediately.
// Absolute paths keep their leading slash, relative paths stay relative.
func (b *Builder) Ensure(p string) error {
	current := ""
	if strings.HasPrefix(p, "/") {
		current = "/"
	}

	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." {
			continue
		}
		switch current {
		case "":
			current = part
		case "/":
			current = "/" + part
		default:
			current = current + "/" + part
		}

		if b.known[current] {
			continue
		}
		if err := b.session.MakeDir(current); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		b.known[current] = true
	}
	return nil
}

// Forget drops every remembered directory.
func (b *Builder) Forget() {
	clear(b.known)
}

// EnsureDir creates every missing segment of p on s.
func EnsureDir(s session.Session, p string) error {
	return NewBuilder(s).Ensure(p)
}
