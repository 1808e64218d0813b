package persistence

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"myoview/internal/blob"
	"myoview/internal/identity"
	"myoview/internal/infra/persistence/postgres"
	"myoview/internal/infra/persistence/postgres/testutil"
	"myoview/internal/naming"
)

type failingState struct {
	loadErr error
	saveErr error
	payload []byte
}

func (f *failingState) Load(context.Context, string) ([]byte, bool, error) {
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	return f.payload, f.payload != nil, nil
}

func (f *failingState) Save(context.Context, string, []byte) error { return f.saveErr }
func (f *failingState) Close() error                                { return nil }
func (f *failingState) Driver() string                              { return "failing" }

func catalogue(t *testing.T) *identity.Catalogue {
	t.Helper()
	return identity.MustNew(
		identity.Entity{ID: "m_bicep_l", Kind: identity.KindMuscle},
		identity.Entity{ID: "m_bicep_r", Kind: identity.KindMuscle},
		identity.Entity{ID: "m_tricep_l", Kind: identity.KindMuscle},
	)
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC) }

func TestParseImportRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"m_bicep_l": `,
		"array":        `["m_bicep_l"]`,
		"string":       `"Biceps"`,
		"number value": `{"m_bicep_l": 3}`,
		"nested value": `{"m_bicep_l": {"name": "Biceps"}}`,
		"null value":   `{"m_bicep_l": null}`,
	}
	for name, raw := range cases {
		if _, err := ParseImport([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else {
			var mi MalformedInputError
			if !errors.As(err, &mi) {
				t.Fatalf("%s: expected MalformedInputError, got %T", name, err)
			}
		}
	}
	m, err := ParseImport([]byte(`{"m_bicep_l": "Biceps", "ghost": "Boo"}`))
	if err != nil || len(m) != 2 || m["m_bicep_l"] != "Biceps" {
		t.Fatalf("valid import = %v %v", m, err)
	}
}

func TestImportFileNoPartialApplication(t *testing.T) {
	ctx := context.Background()
	s := naming.NewStore(catalogue(t))
	_, err := ImportFile(ctx, []byte(`{"m_bicep_l": "Biceps", "m_bicep_r": 7}`), s)
	if err == nil {
		t.Fatalf("expected malformed error")
	}
	if s.Len() != 0 || s.Version() != 0 {
		t.Fatalf("malformed import touched the store")
	}
	report, err := ImportFile(ctx, []byte(`{"m_bicep_l": "Biceps", "ghost": "X"}`), s)
	if err != nil || report.Imported != 1 || report.Skipped != 1 {
		t.Fatalf("report = %+v %v", report, err)
	}
}

func TestSaveLoadRoundTripThroughStore(t *testing.T) {
	ctx := context.Background()
	state, err := OpenStateStoreDriver(ctx, StorageMemory, "", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	g := NewGateway(state)
	s := naming.NewStore(catalogue(t), naming.WithPersister(g))
	if err := s.SetMany(ctx, []string{"m_bicep_l", "m_bicep_r"}, "Biceps"); err != nil {
		t.Fatalf("set: %v", err)
	}
	loaded := NewGateway(state).Load(ctx)
	if len(loaded) != 2 || loaded["m_bicep_r"] != "Biceps" {
		t.Fatalf("loaded = %v", loaded)
	}
	export, _, _ := state.Load(ctx, StorageKey)
	_, file, _ := g.ExportFile(s.Export())
	if string(export) != string(file) {
		t.Fatalf("export content must equal stored payload:\n%s\n%s", export, file)
	}
}

func TestLoadDegradesOnUnavailableStorage(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(&failingState{loadErr: errors.New("locked")})
	if m := g.Load(ctx); len(m) != 0 {
		t.Fatalf("expected empty mapping")
	}
	if !g.Degraded() {
		t.Fatalf("gateway should be degraded")
	}
	var sue naming.StorageUnavailableError
	if err := g.Save(ctx, naming.Mapping{"a": "b"}); !errors.As(err, &sue) {
		t.Fatalf("degraded save should report unavailable, got %v", err)
	}
}

func TestLoadDiscardsMalformedPayloadWithoutDegrading(t *testing.T) {
	g := NewGateway(&failingState{payload: []byte(`{"m_bicep_l": 1}`)})
	if m := g.Load(context.Background()); len(m) != 0 {
		t.Fatalf("malformed payload must load as empty")
	}
	if g.Degraded() {
		t.Fatalf("malformed content must not disable saving")
	}
	var mi MalformedInputError
	if !errors.As(g.LastError(), &mi) || mi.Source != "durable store" {
		t.Fatalf("last error = %v", g.LastError())
	}
}

func TestSaveFailureDegradesStore(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(&failingState{saveErr: errors.New("read-only")})
	s := naming.NewStore(catalogue(t), naming.WithPersister(g))
	if err := s.Set(ctx, "m_bicep_l", "Biceps"); err != nil {
		t.Fatalf("mutation must succeed: %v", err)
	}
	if !s.Degraded() || !g.Degraded() {
		t.Fatalf("both store and gateway should degrade")
	}
}

func TestExportWritesTimestampedArchive(t *testing.T) {
	ctx := context.Background()
	archive := blob.NewMemory()
	g := NewGateway(nil, WithArchive(archive), WithArchivePrefix("exports"), WithClock(fixedClock))
	m := naming.Mapping{"m_bicep_l": "Biceps"}
	info, err := g.Export(ctx, m)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Key != "exports/muscle_name_mapping_2024-05-01_101500.json" {
		t.Fatalf("key = %s", info.Key)
	}
	second, err := g.Export(ctx, m)
	if err != nil || second.Key != "exports/muscle_name_mapping_2024-05-01_101500-2.json" {
		t.Fatalf("collision key = %s %v", second.Key, err)
	}
	list, err := g.ListExports(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %+v %v", list, err)
	}
	got, err := g.FetchExport(ctx, info.Key)
	if err != nil || got["m_bicep_l"] != "Biceps" {
		t.Fatalf("fetch = %v %v", got, err)
	}
	if _, err := g.FetchExport(ctx, "exports/missing.json"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExportWithoutArchive(t *testing.T) {
	g := NewGateway(nil)
	if _, err := g.Export(context.Background(), naming.Mapping{}); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
	name, payload, err := g.ExportFile(naming.Mapping{"b": "2", "a": "1"})
	if err != nil || !strings.HasPrefix(name, "muscle_name_mapping_") {
		t.Fatalf("export file = %s %v", name, err)
	}
	if string(payload) != "{\n  \"a\": \"1\",\n  \"b\": \"2\"\n}\n" {
		t.Fatalf("payload not pretty/sorted: %q", payload)
	}
	if g.Driver() != "none" {
		t.Fatalf("driver = %s", g.Driver())
	}
}

func TestReadImportFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(p, []byte(`{"m_bicep_l":"Biceps"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := ReadImportFile(p)
	if err != nil || len(raw) == 0 {
		t.Fatalf("read = %v", err)
	}
	if _, err := ReadImportFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenStateStoreDrivers(t *testing.T) {
	ctx := context.Background()
	t.Setenv("MYOVIEW_STORAGE_DRIVER", "memory")
	st, err := OpenStateStore(ctx)
	if err != nil || st.Driver() != "memory" {
		t.Fatalf("memory: %v", err)
	}
	if _, err := OpenStateStoreDriver(ctx, "redis", "", ""); err == nil {
		t.Fatalf("unknown driver must fail")
	}
	st, err = OpenStateStoreDriver(ctx, "", filepath.Join(t.TempDir(), "m.db"), "")
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if st.Driver() != "sqlite" {
		t.Fatalf("default driver = %s", st.Driver())
	}
	_ = st.Close()

	db, _ := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	st, err = OpenStateStoreDriver(ctx, StoragePostgres, "", "postgres://stub")
	if err != nil || st.Driver() != "postgres" {
		t.Fatalf("postgres: %v", err)
	}
}
