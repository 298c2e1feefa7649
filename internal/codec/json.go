package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"glucotrack/internal/domain"
)

// JSONCodec handles structured documents as JSON
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() Format {
	return FormatStructured
}

// Decode parses a JSON document into maps, slices and scalars
func (c *JSONCodec) Decode(r io.Reader, _ Options) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.ErrCorruptOrEmpty
	}

	var v any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON: %v", domain.ErrCorruptOrEmpty, err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON document", domain.ErrCorruptOrEmpty)
	}

	return normalizeTree(v), nil
}

// Encode writes v as indented JSON
func (c *JSONCodec) Encode(w io.Writer, v any, _ Options) error {
	if !isStructured(v) {
		return &domain.FormatError{Shape: fmt.Sprintf("%T", v)}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "    ")

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// isStructured accepts mappings, sequences and structs. Datasets belong to
// the tabular codec.
func isStructured(v any) bool {
	switch v.(type) {
	case nil, *domain.Dataset, domain.Dataset:
		return false
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return t != reflect.TypeOf([]byte(nil))
	}
	return false
}

// normalizeTree maps decoded numbers onto int64/float64 and every mapping
// onto map[string]any
func normalizeTree(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = normalizeTree(item)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalizeTree(item)
		}
		return out
	case []any:
		for i, item := range x {
			x[i] = normalizeTree(item)
		}
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return strings.TrimSpace(x.String())
	default:
		return domain.NormalizeValue(x)
	}
}
