package codec

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"glucotrack/internal/domain"
)

// CSVCodec handles tabular datasets as delimited text with a header row
type CSVCodec struct {
	comma rune
}

// NewCSVCodec creates a tabular codec with the given delimiter
func NewCSVCodec(comma rune) *CSVCodec {
	return &CSVCodec{comma: comma}
}

// Format returns the codec format identifier
func (c *CSVCodec) Format() Format {
	return FormatTabular
}

func (c *CSVCodec) delimiter(opts Options) rune {
	if opts.Comma != 0 {
		return opts.Comma
	}
	return c.comma
}

// Decode parses a header row followed by data rows
func (c *CSVCodec) Decode(r io.Reader, opts Options) (any, error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); errors.Is(err, io.EOF) {
		return nil, domain.ErrCorruptOrEmpty
	}

	reader := csv.NewReader(br)
	reader.Comma = c.delimiter(opts)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrCorruptOrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", domain.ErrCorruptOrEmpty, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	timeCols := make(map[string]bool, len(opts.TimeColumns))
	for _, col := range opts.TimeColumns {
		timeCols[col] = true
	}

	ds := domain.NewDataset(header...)
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCorruptOrEmpty, err)
		}

		row := make(domain.Record, len(header))
		for i, col := range header {
			if timeCols[col] {
				row[col] = parseTimeCell(fields[i], opts.TimeLayout)
				continue
			}
			row[col] = parseCell(fields[i])
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// Encode writes a dataset, or a list of records, with a header row
func (c *CSVCodec) Encode(w io.Writer, v any, opts Options) error {
	ds, ok := toDataset(v)
	if !ok {
		return &domain.FormatError{Shape: fmt.Sprintf("%T", v)}
	}

	writer := csv.NewWriter(w)
	writer.Comma = c.delimiter(opts)

	if err := writer.Write(ds.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	fields := make([]string, len(ds.Columns))
	for _, row := range ds.Rows {
		for i, col := range ds.Columns {
			fields[i] = formatCell(row[col], opts.TimeLayout)
		}
		if err := writer.Write(fields); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func toDataset(v any) (*domain.Dataset, bool) {
	switch x := v.(type) {
	case *domain.Dataset:
		if x == nil {
			return domain.NewDataset(), true
		}
		return x, true
	case domain.Dataset:
		return &x, true
	case []domain.Record:
		ds := domain.NewDataset()
		for _, r := range x {
			ds.Append(r)
		}
		return ds, true
	case []map[string]any:
		return domain.AsDataset(x), true
	case []any:
		ds := domain.NewDataset()
		for _, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			ds.Append(domain.Record(m))
		}
		return ds, true
	}
	return nil, false
}

// parseCell infers int64, float64 and bool cells; empty cells are nil
func parseCell(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if isDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	switch s {
	case "true", "True", "TRUE":
		return true
	case "false", "False", "FALSE":
		return false
	}
	return s
}

// isDecimal rejects the spellings ParseFloat accepts beyond plain decimals (NaN, Inf, hex)
func isDecimal(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) && r != 'e' && r != 'E'
	}) < 0
}

func parseTimeCell(s, layout string) any {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(layout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return s
}

func formatCell(v any, layout string) string {
	switch x := domain.NormalizeValue(v).(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !math.IsInf(x, 0) && !math.IsNaN(x) && !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case bool:
		if x {
			return "true"
		}
		return "false"
	case time.Time:
		return x.Format(layout)
	default:
		return fmt.Sprint(x)
	}
}
