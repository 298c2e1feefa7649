package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"glucotrack/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles structured documents as YAML
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() Format {
	return FormatStructured
}

// Decode parses the first YAML document
func (c *YAMLCodec) Decode(r io.Reader, _ Options) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.ErrCorruptOrEmpty
	}

	var v any
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrCorruptOrEmpty
		}
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", domain.ErrCorruptOrEmpty, err)
	}
	if v == nil {
		return nil, domain.ErrCorruptOrEmpty
	}

	return normalizeTree(v), nil
}

// Encode writes v as a YAML document
func (c *YAMLCodec) Encode(w io.Writer, v any, _ Options) error {
	if !isStructured(v) {
		return &domain.FormatError{Shape: fmt.Sprintf("%T", v)}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
