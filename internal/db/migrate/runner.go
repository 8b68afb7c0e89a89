// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"laundry-service/backend/internal/db"
)

// Directions accepted by Run.
const (
	Up   = "up"
	Down = "down"
)

// ErrNoChange is returned when there is nothing to apply in the requested direction.
var ErrNoChange = migrate.ErrNoChange

// Run migrates the database at dsn up to the latest version or down to an empty schema.
// Reaching the target with nothing to do is not an error.
func Run(dsn, direction string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	if direction != Up && direction != Down {
		return fmt.Errorf("direction must be %s or %s, got %q", Up, Down, direction)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == Up {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
