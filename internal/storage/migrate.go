package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var schema embed.FS

// migrateSchema applies the embedded migrations to the database at path and
// returns the resulting schema version. It opens its own connection: closing
// the migrator closes the database it wraps.
func migrateSchema(path string) (uint, error) {
	src, err := iofs.New(schema, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load embedded schema: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("open %s for migration: %w", path, err)
	}
	defer conn.Close()

	drv, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return 0, fmt.Errorf("migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
