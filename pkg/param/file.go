package param

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/redo/pkg/domain"
)

// File tracks a filesystem target. Its snapshot is [path, modification time],
// with the time in Unix nanoseconds.
type File struct {
	name       string
	path       string
	autoCreate bool
	logValue   any
}

// FileOption configures a File parameter.
type FileOption func(*File)

// AutoCreate creates the parent directories and an empty file when the
// target does not exist yet. Typical for outputs.
func AutoCreate() FileOption {
	return func(f *File) {
		f.autoCreate = true
	}
}

// NewFile creates a file parameter and takes its first snapshot.
func NewFile(name, path string, opts ...FileOption) (*File, error) {
	f := &File{name: name, path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.Refresh(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) Name() string  { return f.name }
func (f *File) Value() any    { return f.path }
func (f *File) LogValue() any { return f.logValue }

// Path returns the normalized path.
func (f *File) Path() string { return f.path }

// Changed reports whether the file differs from the old [path, mtime] snapshot.
func (f *File) Changed(old any) (bool, error) {
	current, err := f.snapshot()
	if err != nil {
		return false, err
	}
	return !Equal(current, old), nil
}

// Refresh stores a new snapshot.
func (f *File) Refresh() error {
	current, err := f.snapshot()
	if err != nil {
		return err
	}
	f.logValue = current
	return nil
}

func (f *File) snapshot() ([]any, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) && f.autoCreate {
		if err := f.create(); err != nil {
			return nil, err
		}
		info, err = os.Stat(f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: file %q: %v", domain.ErrDependencyUnavailable, f.path, err)
	}
	return []any{f.path, info.ModTime().UnixNano()}, nil
}

func (f *File) create() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%w: create directory for %q: %v", domain.ErrDependencyUnavailable, f.path, err)
	}
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create %q: %v", domain.ErrDependencyUnavailable, f.path, err)
	}
	return fh.Close()
}
