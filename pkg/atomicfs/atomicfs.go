package atomicfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// File writes through a temp file in the destination directory and
// renames it into place on Close. Readers never observe a partially
// written file.
type File struct {
	tmp  *os.File
	path string
	sync bool
}

type Option func(f *File) error

// WithSync fsyncs the temp file before the rename.
func WithSync() Option {
	return func(f *File) error {
		f.sync = true
		return nil
	}
}

func WithMode(mode os.FileMode) Option {
	return func(f *File) error {
		return f.tmp.Chmod(mode)
	}
}

const tmpSuffix = ".tmp-"

func Create(path string, opts ...Option) (f *File, err error) {
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("atomicfs: resolve %s: %w", path, err)
	}
	dir, base := filepath.Split(path)

	tmp, err := os.CreateTemp(dir, base+tmpSuffix)
	if err != nil {
		return nil, err
	}

	f = &File{tmp: tmp, path: path}
	defer func() {
		if err != nil {
			_ = f.Discard()
		}
	}()

	// Uncommitted temp files would otherwise pile up until reboot.
	runtime.SetFinalizer(f, (*File).Discard)

	for _, opt := range opts {
		if err = opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *File) Write(data []byte) (int, error) {
	return f.tmp.Write(data)
}

// Discard drops the temp file without touching the destination. Safe
// to call after Close.
func (f *File) Discard() error {
	if f.tmp == nil {
		return nil
	}
	defer func() {
		f.tmp = nil
	}()

	if err := f.tmp.Close(); err != nil {
		return err
	}
	return os.Remove(f.tmp.Name())
}

// Close commits the file. On any error the temp file is discarded and
// the destination keeps its previous content.
func (f *File) Close() (err error) {
	if f.tmp == nil {
		return fmt.Errorf("atomicfs: Close on a finished file")
	}
	defer func() {
		if err != nil {
			_ = f.Discard()
		} else {
			f.tmp = nil
		}
	}()

	if f.sync {
		if err = f.tmp.Sync(); err != nil {
			return err
		}
	}
	if err = f.tmp.Close(); err != nil {
		return err
	}
	return os.Rename(f.tmp.Name(), f.path)
}

// WriteFile is the atomic version of os.WriteFile.
func WriteFile(path string, data []byte, opts ...Option) error {
	f, err := Create(path, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Discard()
	}()

	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Close()
}

var _ io.WriteCloser = (*File)(nil)
