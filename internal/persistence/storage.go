package persistence

import (
	"context"
	"fmt"
	"os"

	"myoview/internal/infra/persistence/memory"
	"myoview/internal/infra/persistence/postgres"
	"myoview/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a durable state backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StateStore is the durable key-value surface the gateway writes the
// mapping snapshot to.
type StateStore interface {
	Load(ctx context.Context, bucket string) ([]byte, bool, error)
	Save(ctx context.Context, bucket string, payload []byte) error
	Close() error
	Driver() string
}

// OpenStateStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	MYOVIEW_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	MYOVIEW_SQLITE_PATH: path to sqlite file (default ./myoview.db)
//	MYOVIEW_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenStateStore(ctx context.Context) (StateStore, error) {
	return OpenStateStoreDriver(ctx,
		StorageDriver(os.Getenv("MYOVIEW_STORAGE_DRIVER")),
		os.Getenv("MYOVIEW_SQLITE_PATH"),
		os.Getenv("MYOVIEW_POSTGRES_DSN"),
	)
}

// OpenStateStoreDriver opens the named backend with explicit settings.
func OpenStateStoreDriver(ctx context.Context, driver StorageDriver, sqlitePath, dsn string) (StateStore, error) {
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(sqlitePath)
	case StoragePostgres:
		return postgres.NewStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
