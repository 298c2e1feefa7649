package adapter

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"glucotrack/internal/domain"
)

// Mode selects how a file is opened
type Mode int

const (
	// ModeRead opens an existing file for reading
	ModeRead Mode = iota
	// ModeWrite creates or truncates a file for writing
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// File is an open handle returned by FS.Open
type File interface {
	io.Reader
	io.Writer
	io.Closer
}

// FS is the uniform filesystem contract shared by every backend.
// Paths are root-relative and forward-slash separated.
type FS interface {
	// Kind returns the backend implementation
	Kind() domain.BackendKind

	// Root returns the configured root folder
	Root() string

	// Exists reports whether a file or folder exists
	Exists(name string) (bool, error)

	// Open opens a file. Missing files opened for reading yield domain.ErrNotFound.
	Open(name string, mode Mode) (File, error)

	// MkdirAll creates a folder and any missing parents
	MkdirAll(name string) error
}

// ErrEscapesRoot is returned for paths that resolve outside the root
var ErrEscapesRoot = errors.New("path escapes storage root")

// CleanPath normalizes a root-relative path. Any ".." segment is rejected.
func CleanPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrEscapesRoot, name)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+name), "/"), nil
}

// Locate returns the physical location of a root-relative path
func Locate(fsys FS, name string) domain.Location {
	return domain.Location{Backend: fsys.Kind(), Root: fsys.Root(), Path: name}
}

// WithFile opens name, passes the handle to fn and closes it on every exit
// path. A close error is returned when fn itself succeeded.
func WithFile(fsys FS, name string, mode Mode, fn func(File) error) (err error) {
	f, err := fsys.Open(name, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", name, cerr)
		}
	}()
	return fn(f)
}

// ReadFile reads a whole file
func ReadFile(fsys FS, name string) ([]byte, error) {
	var data []byte
	err := WithFile(fsys, name, ModeRead, func(f File) error {
		var rerr error
		data, rerr = io.ReadAll(f)
		return rerr
	})
	return data, err
}

// WriteFile replaces a file's content, creating its parent folder first
func WriteFile(fsys FS, name string, data []byte) error {
	if dir := path.Dir(name); dir != "." && dir != "/" {
		ok, err := fsys.Exists(dir)
		if err != nil {
			return err
		}
		if !ok {
			if err := fsys.MkdirAll(dir); err != nil {
				return fmt.Errorf("create folder %s: %w", dir, err)
			}
		}
	}
	return WithFile(fsys, name, ModeWrite, func(f File) error {
		_, werr := f.Write(data)
		return werr
	})
}
