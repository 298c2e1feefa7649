package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"glucotrack/internal/domain"
)

// Local is an FS over a directory tree on the local disk
type Local struct {
	root string
}

// NewLocal creates a local backend rooted at root, creating the folder if needed
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create root %s: %w", abs, err)
	}
	return &Local{root: abs}, nil
}

// Kind returns the backend kind
func (l *Local) Kind() domain.BackendKind {
	return domain.BackendLocal
}

// Root returns the absolute root folder
func (l *Local) Root() string {
	return l.root
}

func (l *Local) resolve(name string) (string, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Exists reports whether name exists below the root
func (l *Local) Exists(name string) (bool, error) {
	full, err := l.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Open opens name for reading or truncating write
func (l *Local) Open(name string, mode Mode) (File, error) {
	full, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	var f *os.File
	if mode == ModeWrite {
		f, err = os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	} else {
		f, err = os.Open(full)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		return nil, err
	}
	return f, nil
}

// MkdirAll creates name and its parents
func (l *Local) MkdirAll(name string) error {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0755)
}
