package events

import (
	"context"
	"fmt"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open returns the store for driver. dsn is the Postgres connection string
// or the SQLite file path; it is ignored for the memory driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres:
		return NewPGStore(ctx, dsn)
	case DriverSQLite:
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
