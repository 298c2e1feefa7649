package codec

import (
	"bytes"
	"errors"
	"fmt"
	"log"

	"glucotrack/internal/adapter"
	"glucotrack/internal/domain"
)

// Store loads and saves typed values through a filesystem backend, picking
// the codec from each file's extension
type Store struct {
	fs adapter.FS
}

// NewStore creates a store over fsys
func NewStore(fsys adapter.FS) *Store {
	return &Store{fs: fsys}
}

// FS returns the underlying backend
func (s *Store) FS() adapter.FS {
	return s.fs
}

// Locate returns the physical location of name
func (s *Store) Locate(name string) domain.Location {
	return adapter.Locate(s.fs, name)
}

// Load reads name. A missing file yields def (written back when
// WithMaterialize is set); a nil def turns a missing file into
// domain.ErrNotFound. An empty or malformed file is logged, overwritten
// with def and def is returned.
//
// On backend failure def is returned together with the error so callers
// can degrade to it.
func (s *Store) Load(name string, def any, opts ...Option) (any, error) {
	o := buildOptions(opts)

	c, err := ForPath(name)
	if err != nil {
		return def, err
	}

	exists, err := s.fs.Exists(name)
	if err != nil {
		return Copy(def), fmt.Errorf("load %s: %w", name, err)
	}
	if !exists {
		if def == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, name)
		}
		log.Printf("File not found: %s, using default", name)
		if o.Materialize {
			if err := s.save(name, def, o); err != nil {
				return Copy(def), err
			}
		}
		return Copy(def), nil
	}

	var value any
	err = adapter.WithFile(s.fs, name, adapter.ModeRead, func(f adapter.File) error {
		var derr error
		value, derr = c.Decode(f, o)
		return derr
	})
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, domain.ErrCorruptOrEmpty) {
		return Copy(def), fmt.Errorf("load %s: %w", name, err)
	}

	log.Printf("File %s is empty or corrupt (%v), reinitializing", name, err)
	if def == nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if serr := s.save(name, def, o); serr != nil {
		return Copy(def), serr
	}
	return Copy(def), nil
}

// Save writes v to name, creating parent folders as needed
func (s *Store) Save(name string, v any, opts ...Option) error {
	return s.save(name, v, buildOptions(opts))
}

func (s *Store) save(name string, v any, o Options) error {
	c, err := ForPath(name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf, v, o); err != nil {
		var fe *domain.FormatError
		if errors.As(err, &fe) {
			return domain.NewFormatError(name, fe.Shape)
		}
		return fmt.Errorf("encode %s: %w", name, err)
	}

	if err := adapter.WriteFile(s.fs, name, buf.Bytes()); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	log.Printf("Saved %s (%s, %d bytes)", name, c.Format(), buf.Len())
	return nil
}

// Copy returns a copy of v that shares no mutable dataset or list state
func Copy(v any) any {
	switch x := v.(type) {
	case *domain.Dataset:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Copy(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Copy(item)
		}
		return out
	case []byte:
		return bytes.Clone(x)
	}
	return v
}
