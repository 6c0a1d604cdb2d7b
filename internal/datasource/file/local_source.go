// Package file implements local filesystem locations.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a single file on disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Name returns the file path.
func (l *Local) Name() string { return l.path }

// Open opens the file. A context that is already done short-circuits before
// the filesystem is touched. Errors keep os.ErrNotExist and friends matchable.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
