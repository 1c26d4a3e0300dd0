package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// DefaultMigrationsDir is used when Migrate is given no source.
const DefaultMigrationsDir = "file://migrations"

// Migrate applies the migrations in dir to dsn. steps > 0 moves that many
// versions in direction; otherwise all the way. Nothing to apply is not an
// error.
func Migrate(dir, dsn, direction string, steps int) error {
	if dir == "" {
		dir = DefaultMigrationsDir
	}
	if dsn == "" {
		return errors.New("migrate: postgres dsn is empty")
	}
	m, err := migrate.New(dir, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up", "":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
