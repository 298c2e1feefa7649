package domain

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// TimeLayout is the layout used to render time cells, e.g. "01.01.2025 08:00:00".
const TimeLayout = "02.01.2006 15:04:05"

// Record is one dataset row keyed by column name.
type Record map[string]any

// Dataset is an ordered list of records sharing a column set
type Dataset struct {
	Columns []string `json:"columns" yaml:"columns"`
	Rows    []Record `json:"rows" yaml:"rows"`
}

// NewDataset creates an empty dataset with the given columns
func NewDataset(columns ...string) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols, Rows: []Record{}}
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether the dataset has neither rows nor columns
func (d *Dataset) Empty() bool {
	return d == nil || (len(d.Rows) == 0 && len(d.Columns) == 0)
}

// HasColumn reports whether name is part of the column set
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Append adds a record at the end. Unknown columns are added to the column
// set in sorted order; prior rows read them as nil.
func (d *Dataset) Append(rec Record) {
	var added []string
	for k := range rec {
		if !d.HasColumn(k) {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	d.Columns = append(d.Columns, added...)

	row := make(Record, len(d.Columns))
	for _, c := range d.Columns {
		row[c] = NormalizeValue(rec[c])
	}
	d.Rows = append(d.Rows, row)
}

// Column returns the values of one column in row order
func (d *Dataset) Column(name string) []any {
	values := make([]any, 0, len(d.Rows))
	for _, row := range d.Rows {
		values = append(values, row[name])
	}
	return values
}

// Clone returns a deep copy of the dataset
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := NewDataset(d.Columns...)
	for _, row := range d.Rows {
		cp := make(Record, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows = append(out.Rows, cp)
	}
	return out
}

// Equal reports whether two datasets have the same columns and the same row
// values in the same order
func (d *Dataset) Equal(other *Dataset) bool {
	if d == nil || other == nil {
		return d == other
	}
	if !reflect.DeepEqual(d.Columns, other.Columns) || len(d.Rows) != len(other.Rows) {
		return false
	}
	for i := range d.Rows {
		for _, c := range d.Columns {
			if !reflect.DeepEqual(NormalizeValue(d.Rows[i][c]), NormalizeValue(other.Rows[i][c])) {
				return false
			}
		}
	}
	return true
}

// Mean returns the arithmetic mean of the numeric cells of a column.
// Non-numeric and nil cells are skipped; ok is false when none remain.
func (d *Dataset) Mean(column string) (mean float64, ok bool) {
	var sum float64
	var n int
	for _, v := range d.Column(column) {
		switch x := v.(type) {
		case int64:
			sum += float64(x)
		case float64:
			sum += x
		default:
			continue
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// NormalizeValue maps Go scalars onto the cell types a decoded dataset
// carries: int64, float64, bool, string, time.Time or nil.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil, int64, float64, bool, string, time.Time:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return unsignedValue(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return unsignedValue(x)
	case float32:
		return float64(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// unsignedValue keeps values above math.MaxInt64 exact as decimal text
func unsignedValue(u uint64) any {
	if u > math.MaxInt64 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}

// AsDataset converts a list of mappings into a dataset. Column order follows
// first appearance, with keys of each mapping taken in sorted order.
func AsDataset(rows []map[string]any) *Dataset {
	ds := NewDataset()
	for _, r := range rows {
		ds.Append(Record(r))
	}
	return ds
}
