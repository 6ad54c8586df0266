package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp applies all pending schema migrations. The migrator runs on its
// own database/sql connection, closed before returning.
func MigrateUp(connString string) error {
	conn, err := sql.Open("postgres", connString)
	if err != nil {
		return fmt.Errorf("open migrations conn: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warnf("close migrations conn: %s", err)
		}
	}()

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debugln("migration state is up to date")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	log.Infoln("ran migrations successfully")
	return nil
}
