// Package fs provides filesystem abstractions and atomic write helpers for vchain.
package fs

import (
	"encoding/json"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
)

// FS is the subset of filesystem operations vchain performs outside the
// artifact scan. Tests substitute a stub.
type FS interface {
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (iofs.FileInfo, error)
	Rename(oldpath, newpath string) error
	Remove(path string) error
	Chmod(path string, perm os.FileMode) error
	CreateTemp(dir, pattern string) (string, io.WriteCloser, error)
}

// RealFS implements FS over the os package.
type RealFS struct{}

// NewRealFS returns the os-backed FS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

func (RealFS) ReadFile(path string) ([]byte, error)         { return os.ReadFile(path) }
func (RealFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (RealFS) Stat(path string) (iofs.FileInfo, error)      { return os.Stat(path) }
func (RealFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (RealFS) Remove(path string) error                     { return os.Remove(path) }
func (RealFS) Chmod(path string, perm os.FileMode) error    { return os.Chmod(path, perm) }

func (RealFS) CreateTemp(dir, pattern string) (string, io.WriteCloser, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, err
	}
	return f.Name(), f, nil
}

// WriteFileAtomic writes data to path via a temp file in the same directory
// followed by a rename, so readers never observe a partial file.
func WriteFileAtomic(fsys FS, path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpPath, w, err := fsys.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmpPath)
		}
	}()

	if _, err = w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	if err = fsys.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return fsys.Rename(tmpPath, path)
}

// WriteJSONAtomic marshals v as indented JSON (with trailing newline) and
// writes it atomically.
func WriteJSONAtomic(fsys FS, path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return WriteFileAtomic(fsys, path, data, perm)
}
