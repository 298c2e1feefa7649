package codec

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"glucotrack/internal/adapter"
	"glucotrack/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	fsys, err := adapter.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	return NewStore(fsys)
}

func TestStoreLoadMissingReturnsDefault(t *testing.T) {
	s := newTestStore(t)
	def := domain.NewDataset("datum_zeit", "blutzuckerwert", "zeitpunkt")

	got, err := s.Load("user_data_alice/data.csv", def)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	ds := got.(*domain.Dataset)
	if !ds.Equal(def) {
		t.Errorf("Load() = %+v, want default", ds)
	}
	if ds == def {
		t.Error("Load() returned the default itself, want a copy")
	}

	if ok, _ := s.FS().Exists("user_data_alice/data.csv"); ok {
		t.Error("missing file was written without WithMaterialize")
	}
}

func TestStoreLoadMaterialize(t *testing.T) {
	s := newTestStore(t)
	def := domain.NewDataset("value")

	if _, err := s.Load("user_data_alice/data.csv", def, WithMaterialize()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	data, err := adapter.ReadFile(s.FS(), "user_data_alice/data.csv")
	if err != nil {
		t.Fatalf("materialized file missing: %v", err)
	}
	if string(data) != "value\n" {
		t.Errorf("materialized content = %q", data)
	}
}

func TestStoreLoadMissingWithoutDefault(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load("data.csv", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStoreLoadCorruptReinitializes(t *testing.T) {
	s := newTestStore(t)
	if err := adapter.WriteFile(s.FS(), "data.csv", nil); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	def := domain.NewDataset("datum_zeit", "blutzuckerwert")
	got, err := s.Load("data.csv", def)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.(*domain.Dataset).Equal(def) {
		t.Errorf("Load() = %+v, want default", got)
	}

	data, _ := adapter.ReadFile(s.FS(), "data.csv")
	if string(data) != "datum_zeit,blutzuckerwert\n" {
		t.Errorf("file not reinitialized, content = %q", data)
	}
}

func TestStoreLoadJSONWithTrailingDataReinitializes(t *testing.T) {
	s := newTestStore(t)
	if err := adapter.WriteFile(s.FS(), "settings.json", []byte(`{"a":1} garbage`)); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	def := map[string]any{"theme": "light"}
	got, err := s.Load("settings.json", def)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(got, def) {
		t.Errorf("Load() = %#v, want default", got)
	}

	data, _ := adapter.ReadFile(s.FS(), "settings.json")
	if strings.Contains(string(data), "garbage") {
		t.Errorf("file not reinitialized, content = %q", data)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	ds := domain.NewDataset("datum_zeit", "blutzuckerwert", "zeitpunkt")
	ds.Append(domain.Record{"datum_zeit": "01.01.2025 08:00:00", "blutzuckerwert": 95, "zeitpunkt": "Nüchtern"})

	if err := s.Save("user_data_alice/data.csv", ds); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := s.Load("user_data_alice/data.csv", domain.NewDataset())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !got.(*domain.Dataset).Equal(ds) {
		t.Errorf("Load() = %+v, want %+v", got, ds)
	}
}

func TestStoreSaveUnsupported(t *testing.T) {
	s := newTestStore(t)

	err := s.Save("sheet.xlsx", domain.NewDataset("a"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("Save(.xlsx) error = %v, want ErrUnsupportedFormat", err)
	}

	err = s.Save("data.json", domain.NewDataset("a"))
	var fe *domain.FormatError
	if !errors.As(err, &fe) || fe.Path != "data.json" {
		t.Errorf("Save(dataset as json) error = %v, want FormatError for data.json", err)
	}
}

func TestStoreLoadBackendFailureReturnsDefault(t *testing.T) {
	s := NewStore(failingFS{})
	def := domain.NewDataset("a")

	got, err := s.Load("data.csv", def)
	if !domain.IsBackendUnavailable(err) {
		t.Fatalf("Load() error = %v, want ErrBackendUnavailable", err)
	}
	if !got.(*domain.Dataset).Equal(def) {
		t.Errorf("Load() value = %+v, want default", got)
	}
}

func TestCopy(t *testing.T) {
	orig := map[string]any{"list": []any{map[string]any{"a": int64(1)}}}
	cp := Copy(orig).(map[string]any)
	cp["list"].([]any)[0].(map[string]any)["a"] = int64(2)

	if orig["list"].([]any)[0].(map[string]any)["a"] != int64(1) {
		t.Error("Copy shares nested state with the original")
	}
}

// failingFS reports every operation as a backend outage
type failingFS struct{}

func (failingFS) Kind() domain.BackendKind { return domain.BackendWebDAV }
func (failingFS) Root() string             { return "https://dav.invalid" }
func (failingFS) Exists(name string) (bool, error) {
	return false, domain.NewBackendError(domain.BackendWebDAV, "stat", name, errors.New("connection refused"))
}
func (failingFS) Open(name string, _ adapter.Mode) (adapter.File, error) {
	return nil, domain.NewBackendError(domain.BackendWebDAV, "get", name, errors.New("connection refused"))
}
func (failingFS) MkdirAll(name string) error {
	return domain.NewBackendError(domain.BackendWebDAV, "mkcol", name, errors.New("connection refused"))
}
