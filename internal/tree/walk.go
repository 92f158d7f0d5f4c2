package tree

import (
	"errors"
	"io/fs"
	"iter"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/eugenetaranov/sitepush/internal/syncerr"
)

// File is a regular file found by Walk.
type File struct {
	// Path is the local path, rooted where the walk started.
	Path string

	// Rel is the path relative to the walk root, with / separators.
	Rel string

	// Size is the file size in bytes at walk time.
	Size int64
}

var errStop = errors.New("stop walk")

// Walk returns a lazy sequence of the regular files under root. Symlinks,
// directories and special files are not yielded. Every call starts a fresh
// traversal of the current filesystem state.
//
// Errors are yielded as LocalPathError values. If the consumer keeps
// iterating after an error the unreadable directory is skipped.
func Walk(fsys afero.Fs, root string) iter.Seq2[File, error] {
	return func(yield func(File, error) bool) {
		err := afero.Walk(fsys, root, func(p string, info fs.FileInfo, err error) error {
			if err != nil {
				if !yield(File{Path: p}, syncerr.LocalPath("walk", p, err)) {
					return errStop
				}
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				if !yield(File{Path: p}, syncerr.LocalPath("walk", p, err)) {
					return errStop
				}
				return nil
			}

			if !yield(File{Path: p, Rel: filepath.ToSlash(rel), Size: info.Size()}, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(File{Path: root}, syncerr.LocalPath("walk", root, err))
		}
	}
}
