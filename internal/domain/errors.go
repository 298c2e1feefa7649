package domain

import (
	"errors"
	"fmt"
)

// Storage error taxonomy
var (
	// ErrBackendUnavailable is returned when remote storage cannot be reached or rejects the credentials
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrNotFound is returned when a file does not exist
	ErrNotFound = errors.New("file not found")

	// ErrCorruptOrEmpty is returned when a file exists but cannot be decoded
	ErrCorruptOrEmpty = errors.New("file is empty or corrupt")

	// ErrUnauthenticated is returned for user-scoped access without an authenticated identity
	ErrUnauthenticated = errors.New("no authenticated session identity")

	// ErrDuplicateIdentity is returned when registering a username that already exists
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrShapeMismatch is returned when appending to a value that is not a dataset or list
	ErrShapeMismatch = errors.New("value is not a dataset or list")

	// ErrUnsupportedFormat is returned when no codec matches an extension or value shape
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnregisteredKey is returned when saving a key that was never loaded
	ErrUnregisteredKey = errors.New("key is not registered")

	// ErrNotResident is returned when saving a key that is no longer held in session memory
	ErrNotResident = errors.New("key is not resident in session")
)

// BackendError wraps a transport or auth failure of a storage backend
type BackendError struct {
	Backend BackendKind
	Op      string
	Path    string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Path, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// FormatError reports a file extension or value shape no codec handles
type FormatError struct {
	Path  string
	Shape string
}

func (e *FormatError) Error() string {
	if e.Shape != "" {
		return fmt.Sprintf("cannot store %s in %q", e.Shape, e.Path)
	}
	return fmt.Sprintf("no codec for %q", e.Path)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// KeyError reports a registry operation on an unknown or evicted key
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Key)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a new BackendError
func NewBackendError(backend BackendKind, op, path string, err error) error {
	return &BackendError{Backend: backend, Op: op, Path: path, Err: err}
}

// NewFormatError creates a new FormatError
func NewFormatError(path, shape string) error {
	return &FormatError{Path: path, Shape: shape}
}

// IsBackendUnavailable checks if an error is a backend failure
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsNotFound checks if an error is a missing file
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
