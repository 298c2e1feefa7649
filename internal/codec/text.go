package codec

import (
	"fmt"
	"io"

	"glucotrack/internal/domain"
)

// TextCodec handles raw text files
type TextCodec struct{}

// NewTextCodec creates a new raw text codec
func NewTextCodec() *TextCodec {
	return &TextCodec{}
}

// Format returns the codec format identifier
func (c *TextCodec) Format() Format {
	return FormatRawText
}

// Decode returns the content as a string
func (c *TextCodec) Decode(r io.Reader, _ Options) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, domain.ErrCorruptOrEmpty
	}
	return string(data), nil
}

// Encode writes a string
func (c *TextCodec) Encode(w io.Writer, v any, _ Options) error {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case fmt.Stringer:
		s = x.String()
	default:
		return &domain.FormatError{Shape: fmt.Sprintf("%T", v)}
	}
	_, err := io.WriteString(w, s)
	return err
}

// BinaryCodec handles opaque binary files
type BinaryCodec struct{}

// NewBinaryCodec creates a new binary codec
func NewBinaryCodec() *BinaryCodec {
	return &BinaryCodec{}
}

// Format returns the codec format identifier
func (c *BinaryCodec) Format() Format {
	return FormatBinary
}

// Decode returns the content as a byte slice
func (c *BinaryCodec) Decode(r io.Reader, _ Options) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, domain.ErrCorruptOrEmpty
	}
	return data, nil
}

// Encode writes a byte slice
func (c *BinaryCodec) Encode(w io.Writer, v any, _ Options) error {
	data, ok := v.([]byte)
	if !ok {
		return &domain.FormatError{Shape: fmt.Sprintf("%T", v)}
	}
	_, err := w.Write(data)
	return err
}
