package registry

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"glucotrack/internal/adapter"
	"glucotrack/internal/codec"
	"glucotrack/internal/domain"
	"glucotrack/internal/hub"
)

// countingFS counts backend round-trips of a wrapped FS
type countingFS struct {
	adapter.FS
	calls atomic.Int64
	down  atomic.Bool
}

func (c *countingFS) outage(op, name string) error {
	return domain.NewBackendError(c.FS.Kind(), op, name, errors.New("connection refused"))
}

func (c *countingFS) Exists(name string) (bool, error) {
	c.calls.Add(1)
	if c.down.Load() {
		return false, c.outage("stat", name)
	}
	return c.FS.Exists(name)
}

func (c *countingFS) Open(name string, mode adapter.Mode) (adapter.File, error) {
	c.calls.Add(1)
	if c.down.Load() {
		return nil, c.outage("open", name)
	}
	return c.FS.Open(name, mode)
}

func newTestManager(t *testing.T) (*Manager, *countingFS) {
	t.Helper()
	local, err := adapter.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	fsys := &countingFS{FS: local}
	return NewManager(codec.NewStore(fsys), nil), fsys
}

func login(s *Session, username string) {
	s.BeginAuthentication()
	s.CompleteAuthentication(username, domain.AuthSuccess)
}

func measurementColumns() *domain.Dataset {
	return domain.NewDataset("datum_zeit", "blutzuckerwert", "zeitpunkt")
}

func TestSessionIsReused(t *testing.T) {
	m, _ := newTestManager(t)

	a := m.Session("abc")
	b := m.Session("abc")
	if a != b {
		t.Error("Session() returned a new instance for a known id")
	}
	if m.Session("other") == a {
		t.Error("different ids share a session")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestLoadAppDataIsIdempotent(t *testing.T) {
	m, fsys := newTestManager(t)
	s := m.Session("s1")
	def := domain.NewDataset("value")

	first, err := s.LoadAppData("settings", "settings.csv", def)
	if err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	if !first.(*domain.Dataset).Equal(def) {
		t.Errorf("LoadAppData() = %+v, want default", first)
	}

	before := fsys.calls.Load()
	second, err := s.LoadAppData("settings", "settings.csv", domain.NewDataset("other"))
	if err != nil {
		t.Fatalf("second LoadAppData() error: %v", err)
	}
	if fsys.calls.Load() != before {
		t.Errorf("second load touched the backend (%d calls)", fsys.calls.Load()-before)
	}
	if second != first {
		t.Error("second load did not return the cached value")
	}
}

func TestAppendOrderingAndPersistence(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")

	if _, err := s.LoadAppData("log", "log.csv", domain.NewDataset("n")); err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	const n = 7
	for i := 0; i < n; i++ {
		if err := s.AppendRecord("log", domain.Record{"n": i}); err != nil {
			t.Fatalf("AppendRecord(%d) error: %v", i, err)
		}
	}
	if err := s.Save("log"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	fresh := m.Session("s2")
	v, err := fresh.LoadAppData("log", "log.csv", domain.NewDataset("n"))
	if err != nil {
		t.Fatalf("LoadAppData() in new session error: %v", err)
	}
	ds := v.(*domain.Dataset)
	if ds.Len() != n {
		t.Fatalf("reloaded %d rows, want %d", ds.Len(), n)
	}
	for i, got := range ds.Column("n") {
		if got != int64(i) {
			t.Errorf("row %d = %v, want %d", i, got, i)
		}
	}
}

func TestMeasurementRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")
	login(s, "alice")

	if _, err := s.LoadUserData("user_data", "data.csv", measurementColumns()); err != nil {
		t.Fatalf("LoadUserData() error: %v", err)
	}
	rec := domain.Record{"datum_zeit": "01.01.2025 08:00:00", "blutzuckerwert": 95, "zeitpunkt": "Nüchtern"}
	if err := s.AppendRecord("user_data", rec); err != nil {
		t.Fatalf("AppendRecord() error: %v", err)
	}
	if err := s.Save("user_data"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	next := m.Session("s2")
	login(next, "alice")
	v, err := next.LoadUserData("user_data", "data.csv", measurementColumns())
	if err != nil {
		t.Fatalf("LoadUserData() error: %v", err)
	}
	ds := v.(*domain.Dataset)
	if ds.Len() != 1 || len(ds.Columns) != 3 {
		t.Fatalf("reloaded dataset = %+v, want one row with three columns", ds)
	}
	want := domain.Record{"datum_zeit": "01.01.2025 08:00:00", "blutzuckerwert": int64(95), "zeitpunkt": "Nüchtern"}
	for k, v := range want {
		if ds.Rows[0][k] != v {
			t.Errorf("%s = %#v, want %#v", k, ds.Rows[0][k], v)
		}
	}
}

func TestNamespaceIsolation(t *testing.T) {
	tests := []struct {
		name  string
		first string
		other string
	}{
		{"plain names", "alice", "bob"},
		{"slash against underscore", "a/b", "a_b"},
		{"space against underscore", "a b", "a_b"},
		{"dots against underscore", "..", "_"},
		{"escape lookalike", "a%2Fb", "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t)

			first := m.Session("first-tab")
			login(first, tt.first)
			other := m.Session("other-tab")
			login(other, tt.other)

			for _, tc := range []struct {
				s     *Session
				value int
			}{{first, 100}, {other, 200}} {
				if _, err := tc.s.LoadUserData("user_data", "data.csv", domain.NewDataset("value")); err != nil {
					t.Fatalf("LoadUserData() error: %v", err)
				}
				if err := tc.s.AppendRecord("user_data", domain.Record{"value": tc.value}); err != nil {
					t.Fatalf("AppendRecord() error: %v", err)
				}
			}

			for _, tc := range []struct {
				username string
				want     int64
			}{{tt.first, 100}, {tt.other, 200}} {
				again := m.Session(tc.username + "-later")
				login(again, tc.username)
				v, err := again.LoadUserData("user_data", "data.csv", domain.NewDataset("value"))
				if err != nil {
					t.Fatalf("LoadUserData() error: %v", err)
				}
				got := v.(*domain.Dataset).Column("value")
				if len(got) != 1 || got[0] != tc.want {
					t.Errorf("%q sees %v, want [%d]", tc.username, got, tc.want)
				}
			}

			a, _ := first.Entry("user_data")
			b, _ := other.Entry("user_data")
			if a.Path == b.Path {
				t.Errorf("%q and %q share %q", tt.first, tt.other, a.Path)
			}
		})
	}
}

func TestUserEntryPath(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")
	login(s, "alice")
	if _, err := s.LoadUserData("user_data", "data.csv", domain.NewDataset("value")); err != nil {
		t.Fatalf("LoadUserData() error: %v", err)
	}
	entry, _ := s.Entry("user_data")
	if entry.Path != "user_data_alice/data.csv" {
		t.Errorf("entry path = %q", entry.Path)
	}
}

func TestLoadUserDataRequiresIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")

	_, err := s.LoadUserData("user_data", "data.csv", domain.NewDataset("value"))
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("LoadUserData() error = %v, want ErrUnauthenticated", err)
	}

	s.BeginAuthentication()
	s.CompleteAuthentication("alice", domain.AuthWrongCredentials)
	if _, err := s.LoadUserData("user_data", "data.csv", domain.NewDataset("value")); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("after failed login error = %v, want ErrUnauthenticated", err)
	}
	if st, last := s.State(); st != domain.StateAnonymous || last != domain.AuthWrongCredentials {
		t.Errorf("State() = %s, %s", st, last)
	}
}

func TestUnauthenticatedLoadEvictsUserEntries(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")
	login(s, "alice")

	if _, err := s.LoadUserData("user_data", "data.csv", domain.NewDataset("value")); err != nil {
		t.Fatalf("LoadUserData() error: %v", err)
	}
	if _, err := s.LoadAppData("shared", "shared.csv", domain.NewDataset("x")); err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}

	// Identity lost without going through logout.
	s.mu.Lock()
	s.identity = domain.Identity{}
	s.mu.Unlock()

	if _, err := s.LoadUserData("user_data", "data.csv", nil); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("LoadUserData() error = %v, want ErrUnauthenticated", err)
	}
	if _, ok := s.Value("user_data"); ok {
		t.Error("user value still resident after refused load")
	}
	if _, ok := s.Entry("user_data"); ok {
		t.Error("user entry still registered after refused load")
	}
	if _, ok := s.Value("shared"); !ok {
		t.Error("application value was evicted")
	}
}

func TestClearIdentityEvictsUserData(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("kiosk")
	login(s, "alice")

	if _, err := s.LoadUserData("user_data", "data.csv", domain.NewDataset("value")); err != nil {
		t.Fatalf("LoadUserData() error: %v", err)
	}
	s.ClearIdentity()

	if _, ok := s.Value("user_data"); ok {
		t.Error("user data survived ClearIdentity")
	}
	if err := s.Save("user_data"); !errors.Is(err, domain.ErrUnregisteredKey) {
		t.Errorf("Save() after logout error = %v, want ErrUnregisteredKey", err)
	}

	login(s, "bob")
	v, err := s.LoadUserData("user_data", "data.csv", domain.NewDataset("value"))
	if err != nil {
		t.Fatalf("LoadUserData() error: %v", err)
	}
	if v.(*domain.Dataset).Len() != 0 {
		t.Error("bob sees rows he never wrote")
	}
}

func TestSwitchingIdentityEvictsPreviousUser(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")
	login(s, "alice")
	if _, err := s.LoadUserData("user_data", "data.csv", domain.NewDataset("value")); err != nil {
		t.Fatalf("LoadUserData() error: %v", err)
	}

	login(s, "bob")
	if _, ok := s.Value("user_data"); ok {
		t.Error("alice's data resident after bob authenticated")
	}
}

func TestAppendShapeMismatch(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")

	if _, err := s.LoadAppData("motd", "motd.txt", "hello"); err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	err := s.AppendRecord("motd", domain.Record{"a": 1})
	if !errors.Is(err, domain.ErrShapeMismatch) {
		t.Fatalf("AppendRecord() error = %v, want ErrShapeMismatch", err)
	}
	if v, _ := s.Value("motd"); v != "hello" {
		t.Errorf("value changed to %v", v)
	}
}

func TestAppendToList(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")

	if _, err := s.LoadAppData("events", "events.json", []any{}); err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	if err := s.AppendRecord("events", domain.Record{"kind": "login"}); err != nil {
		t.Fatalf("AppendRecord() error: %v", err)
	}

	fresh := m.Session("s2")
	v, err := fresh.LoadAppData("events", "events.json", []any{})
	if err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	list := v.([]any)
	if len(list) != 1 || list[0].(map[string]any)["kind"] != "login" {
		t.Errorf("reloaded list = %#v", list)
	}
}

func TestSaveErrors(t *testing.T) {
	m, _ := newTestManager(t)
	s := m.Session("s1")

	if err := s.Save("never"); !errors.Is(err, domain.ErrUnregisteredKey) {
		t.Errorf("Save(unregistered) error = %v, want ErrUnregisteredKey", err)
	}

	if _, err := s.LoadAppData("k", "k.csv", domain.NewDataset("a")); err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	s.Evict("k")
	if err := s.Save("k"); !errors.Is(err, domain.ErrNotResident) {
		t.Errorf("Save(evicted) error = %v, want ErrNotResident", err)
	}
	if err := s.AppendRecord("k", domain.Record{"a": 1}); !errors.Is(err, domain.ErrNotResident) {
		t.Errorf("AppendRecord(evicted) error = %v, want ErrNotResident", err)
	}
}

func TestSaveAllFlushesResidentKeys(t *testing.T) {
	m, fsys := newTestManager(t)
	s := m.Session("s1")

	for _, key := range []string{"a", "b", "c"} {
		if _, err := s.LoadAppData(key, key+".csv", domain.NewDataset("v")); err != nil {
			t.Fatalf("LoadAppData(%s) error: %v", key, err)
		}
		ds, _ := s.Dataset(key)
		ds.Append(domain.Record{"v": key})
	}
	s.Evict("c")

	if err := s.SaveAll(); err != nil {
		t.Fatalf("SaveAll() error: %v", err)
	}
	for key, want := range map[string]bool{"a.csv": true, "b.csv": true, "c.csv": false} {
		ok, _ := fsys.FS.Exists(key)
		if ok != want {
			t.Errorf("%s exists = %v, want %v", key, ok, want)
		}
	}
}

func TestDegradedLoadIsNotRegistered(t *testing.T) {
	m, fsys := newTestManager(t)
	s := m.Session("s1")
	fsys.down.Store(true)

	v, err := s.LoadAppData("shared", "shared.csv", domain.NewDataset("value"))
	if err != nil {
		t.Fatalf("LoadAppData() error = %v, want degraded default", err)
	}
	if !v.(*domain.Dataset).Equal(domain.NewDataset("value")) {
		t.Errorf("degraded value = %+v", v)
	}
	if w := s.Warnings(); len(w) != 1 {
		t.Errorf("Warnings() = %v, want one warning", w)
	}
	if _, ok := s.Entry("shared"); ok {
		t.Error("degraded load registered the key")
	}

	fsys.down.Store(false)
	if _, err := s.LoadAppData("shared", "shared.csv", domain.NewDataset("value")); err != nil {
		t.Fatalf("LoadAppData() after recovery error: %v", err)
	}
	if _, ok := s.Entry("shared"); !ok {
		t.Error("key not registered after recovery")
	}
}

func TestAppendWriteFailureKeepsValue(t *testing.T) {
	m, fsys := newTestManager(t)
	s := m.Session("s1")

	if _, err := s.LoadAppData("k", "k.csv", domain.NewDataset("v")); err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	fsys.down.Store(true)
	if err := s.AppendRecord("k", domain.Record{"v": 1}); !domain.IsBackendUnavailable(err) {
		t.Fatalf("AppendRecord() error = %v, want ErrBackendUnavailable", err)
	}
	if ds, _ := s.Dataset("k"); ds.Len() != 0 {
		t.Errorf("value changed despite failed write: %+v", ds)
	}
}

func TestSweepDropsIdleSessions(t *testing.T) {
	m, _ := newTestManager(t)
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Session("old")
	now = now.Add(time.Hour)
	m.Session("new")

	if n := m.Sweep(30 * time.Minute); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if _, ok := m.Lookup("old"); ok {
		t.Error("idle session survived Sweep")
	}
	if _, ok := m.Lookup("new"); !ok {
		t.Error("active session was swept")
	}
}

func TestEventsArePublished(t *testing.T) {
	local, err := adapter.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error: %v", err)
	}
	bus := hub.NewEventBus()
	ch := make(chan hub.Event, 10)
	bus.Subscribe(ch)

	m := NewManager(codec.NewStore(local), bus)
	s := m.Session("s1")
	if _, err := s.LoadAppData("k", "k.csv", domain.NewDataset("v")); err != nil {
		t.Fatalf("LoadAppData() error: %v", err)
	}
	if err := s.AppendRecord("k", domain.Record{"v": 1}); err != nil {
		t.Fatalf("AppendRecord() error: %v", err)
	}

	for _, want := range []hub.EventType{hub.EventDataLoaded, hub.EventRecordAppended} {
		ev := <-ch
		if ev.Type != want || ev.SessionID != "s1" || ev.Key != "k" {
			t.Errorf("event = %+v, want %s for s1/k", ev, want)
		}
	}
}

func TestInvalidateEvictsMatchingPath(t *testing.T) {
	m, fsys := newTestManager(t)
	a := m.Session("a")
	b := m.Session("b")
	login(b, "bob")

	if _, err := a.LoadAppData("settings", "settings.csv", domain.NewDataset("v")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.LoadAppData("settings", "settings.csv", domain.NewDataset("v")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.LoadUserData("user_data", "data.csv", measurementColumns()); err != nil {
		t.Fatal(err)
	}

	if n := m.Invalidate("settings.csv"); n != 2 {
		t.Errorf("Invalidate() = %d, want 2", n)
	}
	if _, ok := a.Value("settings"); ok {
		t.Error("settings still resident in a")
	}
	if _, ok := b.Value("user_data"); !ok {
		t.Error("unrelated key evicted")
	}
	if _, ok := a.Entry("settings"); !ok {
		t.Error("registration dropped by invalidation")
	}

	before := fsys.calls.Load()
	if _, err := a.LoadAppData("settings", "settings.csv", domain.NewDataset("v")); err != nil {
		t.Fatal(err)
	}
	if fsys.calls.Load() == before {
		t.Error("load after invalidation did not read the backend")
	}
}
