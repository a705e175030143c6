package storage

import (
	"context"
	"fmt"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result is what a query returns.
type Result struct {
	Rows     []Row
	RowCount int64
}

// DB is the fetch-rows / execute-statement capability the caches persist
// through. Queries use $n placeholders.
type DB interface {
	Query(ctx context.Context, query string, args ...any) (*Result, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Close() error
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the configured database and applies the embedded
// migrations.
func Open(ctx context.Context, driver, dsn string, maxConns int) (DB, error) {
	var db DB
	var err error

	switch driver {
	case DriverPostgres:
		db, err = NewPostgres(ctx, dsn, maxConns)
	case DriverSQLite:
		db, err = NewSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// bytesOf returns a text column's value as bytes. Drivers differ on whether
// TEXT comes back as string or []byte.
func bytesOf(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	case nil:
		return nil, fmt.Errorf("unexpected null column")
	default:
		return nil, fmt.Errorf("unexpected column type %T", v)
	}
}
