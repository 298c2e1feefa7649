package domain

import (
	"math"
	"reflect"
	"testing"
)

func TestDatasetAppendPreservesOrder(t *testing.T) {
	ds := NewDataset("datum_zeit", "blutzuckerwert", "zeitpunkt")

	for i := 1; i <= 5; i++ {
		ds.Append(Record{"datum_zeit": "01.01.2025 08:00:00", "blutzuckerwert": i * 10, "zeitpunkt": "Nüchtern"})
	}

	if ds.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", ds.Len())
	}
	for i, v := range ds.Column("blutzuckerwert") {
		if v != int64((i+1)*10) {
			t.Errorf("row %d blutzuckerwert = %v, want %d", i, v, (i+1)*10)
		}
	}
}

func TestDatasetAppendWidensColumns(t *testing.T) {
	ds := NewDataset("value")
	ds.Append(Record{"value": 1})
	ds.Append(Record{"value": 2, "note": "x", "extra": true})

	want := []string{"value", "extra", "note"}
	if !reflect.DeepEqual(ds.Columns, want) {
		t.Fatalf("Columns = %v, want %v", ds.Columns, want)
	}
	if ds.Rows[0]["note"] != nil {
		t.Errorf("first row note = %v, want nil", ds.Rows[0]["note"])
	}
	if ds.Rows[1]["extra"] != true {
		t.Errorf("second row extra = %v, want true", ds.Rows[1]["extra"])
	}
}

func TestDatasetCloneIsIndependent(t *testing.T) {
	ds := NewDataset("value")
	ds.Append(Record{"value": 1})

	cp := ds.Clone()
	cp.Append(Record{"value": 2})
	cp.Rows[0]["value"] = int64(99)

	if ds.Len() != 1 || ds.Rows[0]["value"] != int64(1) {
		t.Errorf("original modified through clone: %+v", ds.Rows)
	}
}

func TestDatasetEqual(t *testing.T) {
	a := NewDataset("v")
	a.Append(Record{"v": 1})
	b := NewDataset("v")
	b.Append(Record{"v": int64(1)})

	if !a.Equal(b) {
		t.Error("datasets with int and int64 cells should be equal")
	}

	b.Append(Record{"v": 2})
	if a.Equal(b) {
		t.Error("datasets with different row counts should differ")
	}
}

func TestDatasetMean(t *testing.T) {
	ds := NewDataset("v")
	if _, ok := ds.Mean("v"); ok {
		t.Error("Mean of empty dataset should not be ok")
	}

	ds.Append(Record{"v": 90})
	ds.Append(Record{"v": 110.0})
	ds.Append(Record{"v": "n/a"})

	mean, ok := ds.Mean("v")
	if !ok || mean != 100 {
		t.Errorf("Mean() = %v, %v, want 100, true", mean, ok)
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{95, int64(95)},
		{int32(7), int64(7)},
		{float32(1.5), float64(1.5)},
		{"Nüchtern", "Nüchtern"},
		{true, true},
		{nil, nil},
		{[]int{1}, "[1]"},
		{uint64(42), int64(42)},
		{uint64(math.MaxInt64), int64(math.MaxInt64)},
		{uint64(math.MaxUint64), "18446744073709551615"},
	}

	for _, tt := range tests {
		if got := NormalizeValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NormalizeValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestAsDataset(t *testing.T) {
	ds := AsDataset([]map[string]any{
		{"b": 1, "a": 2},
		{"c": 3},
	})

	if !reflect.DeepEqual(ds.Columns, []string{"a", "b", "c"}) {
		t.Errorf("Columns = %v", ds.Columns)
	}
	if ds.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ds.Len())
	}
}
