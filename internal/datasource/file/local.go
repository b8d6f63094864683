// Package file opens local input files.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a file on the local filesystem.
type Local struct {
	path string
}

func NewLocal(path string) *Local { return &Local{path: path} }

func (l *Local) Path() string { return l.path }

// Open returns a sequential reader over the file.
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

// Random is a random-access view of a file, as columnar readers need.
type Random struct {
	io.ReaderAt
	io.Closer
	Size int64
}

// OpenRandom opens the file for random access and reports its size.
func (l *Local) OpenRandom(ctx context.Context) (*Random, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}
	return &Random{ReaderAt: f, Closer: f, Size: st.Size()}, nil
}
