package codec

import (
	"io"
	"path"
	"strings"

	"glucotrack/internal/domain"
)

// Format is the closed set of value shapes the storage layer understands
type Format int

const (
	// FormatTabular is a dataset stored as delimited text with a header row
	FormatTabular Format = iota
	// FormatStructured is a nested mapping/sequence document
	FormatStructured
	// FormatRawText is a plain string
	FormatRawText
	// FormatBinary is an opaque byte slice
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatTabular:
		return "tabular"
	case FormatStructured:
		return "structured"
	case FormatRawText:
		return "text"
	case FormatBinary:
		return "binary"
	}
	return "unknown"
}

// Codec translates between file content and an in-memory value
type Codec interface {
	// Format returns the value shape handled by the codec
	Format() Format

	// Decode parses content. Empty content yields domain.ErrCorruptOrEmpty.
	Decode(r io.Reader, opts Options) (any, error)

	// Encode writes v. Values of the wrong shape yield domain.ErrUnsupportedFormat.
	Encode(w io.Writer, v any, opts Options) error
}

// codecs is the extension lookup table
var codecs = map[string]Codec{
	".csv":  NewCSVCodec(','),
	".tsv":  NewCSVCodec('\t'),
	".json": NewJSONCodec(),
	".yaml": NewYAMLCodec(),
	".yml":  NewYAMLCodec(),
	".txt":  NewTextCodec(),
	".md":   NewTextCodec(),
	".log":  NewTextCodec(),
	".bin":  NewBinaryCodec(),
	".dat":  NewBinaryCodec(),
}

// ForPath returns the codec selected by the file extension of name
func ForPath(name string) (Codec, error) {
	c, ok := codecs[strings.ToLower(path.Ext(name))]
	if !ok {
		return nil, domain.NewFormatError(name, "")
	}
	return c, nil
}

// Options tune decoding and encoding
type Options struct {
	// Comma overrides the codec's field delimiter when non-zero
	Comma rune
	// TimeLayout formats and parses time cells
	TimeLayout string
	// TimeColumns are parsed into time.Time on decode
	TimeColumns []string
	// Materialize writes the default to a missing file on Load
	Materialize bool
}

// Option configures Options
type Option func(*Options)

// WithComma sets the tabular field delimiter
func WithComma(r rune) Option {
	return func(o *Options) { o.Comma = r }
}

// WithTimeColumns parses the named tabular columns as times in layout.
// An empty layout selects domain.TimeLayout.
func WithTimeColumns(layout string, columns ...string) Option {
	return func(o *Options) {
		if layout != "" {
			o.TimeLayout = layout
		}
		o.TimeColumns = append(o.TimeColumns, columns...)
	}
}

// WithMaterialize writes the default value when the file is missing
func WithMaterialize() Option {
	return func(o *Options) { o.Materialize = true }
}

func buildOptions(opts []Option) Options {
	o := Options{TimeLayout: domain.TimeLayout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
