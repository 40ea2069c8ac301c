package migrate

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate migrates the DB with the migration files at the passed path
// ("file://..." URL).
func Migrate(dbconn *sql.DB, migrations string, options ...Option) error {
	cfg := &sqlite3.Config{
		MigrationsTable: "migrations",
	}
	for _, option := range options {
		option(cfg)
	}

	driver, err := sqlite3.WithInstance(dbconn, cfg)
	if err != nil {
		return err
	}

	migration, err := migrate.NewWithDatabaseInstance(migrations, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := migration.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

type Option func(*sqlite3.Config)

func WithMigrationsTable(name string) Option {
	return func(c *sqlite3.Config) {
		c.MigrationsTable = name
	}
}
