// Package tree implements the recursive operations a sync is built from:
// erasing a remote tree, building a remote directory chain and walking a
// local tree.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/eugenetaranov/sitepush/internal/session"
)

// ErrRootPath is returned when asked to erase the remote root itself.
var ErrRootPath = errors.New("refusing to erase remote root")

// Erase removes p and everything beneath it. A missing p is success and
// performs no writes.
//
// Removal failures do not stop the walk: siblings are still attempted and all
// failures are returned together. A directory whose children could not all be
// removed is left in place.
func Erase(s session.Session, p string) error {
	if isRoot(p) {
		return fmt.Errorf("%w: %q", ErrRootPath, p)
	}
	return erase(s, p)
}

func erase(s session.Session, p string) error {
	entries, err := s.List(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var result *multierror.Error
	for _, e := range entries {
		child := path.Join(p, e.Name)
		if e.IsDir {
			if err := erase(s, child); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if err := s.RemoveFile(child); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result != nil {
		return result.ErrorOrNil()
	}

	return s.RemoveDir(p)
}

func isRoot(p string) bool {
	switch strings.TrimSpace(p) {
	case "", "/", ".":
		return true
	default:
		return path.Clean(p) == "/"
	}
}
