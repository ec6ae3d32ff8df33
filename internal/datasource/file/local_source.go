// Package file implements the local filesystem source used for pipeline
// artifacts (raw extracts, processed datasets, quality reports).
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Local opens a single artifact path from local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open returns the artifact for reading. A context that is already done
// short-circuits without touching the filesystem. Filesystem errors are
// wrapped with the path and stay matchable with errors.Is(err, os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}

// Exists reports whether the artifact is present as a regular file.
// Missing paths return (false, nil); other stat failures are returned.
func (l *Local) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	st, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", l.path, err)
	}
	return st.Mode().IsRegular(), nil
}
