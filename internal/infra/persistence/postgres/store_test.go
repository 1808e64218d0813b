package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"myoview/internal/infra/persistence/postgres/testutil"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != "pgx" {
			t.Fatalf("unexpected driver %q", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreEnsuresStateTable(t *testing.T) {
	store, conn := openStub(t)
	if store.Driver() != "postgres" {
		t.Fatalf("driver = %s", store.Driver())
	}
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE IF NOT EXISTS STATE") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected state DDL, got %v", conn.Execs)
	}
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	if _, ok, err := store.Load(ctx, "muscle_display_names"); err != nil || ok {
		t.Fatalf("empty load = %v %v", ok, err)
	}
	if err := store.Save(ctx, "muscle_display_names", []byte(`{"m_a":"A"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "muscle_display_names", []byte(`{"m_a":"B"}`)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if got, _ := conn.Payload("muscle_display_names"); got != `{"m_a":"B"}` {
		t.Fatalf("upsert did not replace payload: %s", got)
	}
	payload, ok, err := store.Load(ctx, "muscle_display_names")
	if err != nil || !ok || string(payload) != `{"m_a":"B"}` {
		t.Fatalf("load = %s %v %v", payload, ok, err)
	}
}

func TestSaveFailures(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	conn.FailBegin = true
	if err := store.Save(ctx, "b", []byte("{}")); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin error, got %v", err)
	}
	conn.FailBegin = false
	conn.FailCommit = true
	if err := store.Save(ctx, "b", []byte("{}")); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
	conn.FailCommit = false
	conn.FailQuery = true
	if _, _, err := store.Load(ctx, "b"); err == nil {
		t.Fatalf("expected query error")
	}
}

func TestNewStorePropagatesOpenAndPingErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewStore(context.Background(), "postgres://x"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
}
