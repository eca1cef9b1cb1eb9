package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var sqlFS embed.FS

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("migrations: create postgres driver: %w", err)
	}
	source, err := iofs.New(sqlFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrations: init migrate instance: %w", err)
	}
	return m, nil
}

// Up applies all pending migrations. A schema that is already current is
// not an error.
func Up(db *sql.DB, l *zap.SugaredLogger) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	current, dirty, verr := m.Version()
	switch {
	case verr == nil:
		l.Infow("migrations_current_version", "version", current, "dirty", dirty)
	case errors.Is(verr, migrate.ErrNilVersion):
		l.Infow("migrations_fresh_database")
	default:
		l.Warnw("migrations_version_unknown", "err", verr)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			l.Infow("migrations_up_to_date", "version", current)
			return nil
		}
		return fmt.Errorf("migrations: apply: %w", err)
	}

	if v, _, err := m.Version(); err == nil {
		l.Infow("migrations_applied", "version", v)
	}
	return nil
}

// Down rolls back steps migrations.
func Down(db *sql.DB, l *zap.SugaredLogger, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("migrations: steps must be positive, got %d", steps)
	}
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("migrations: rollback %d: %w", steps, err)
	}
	l.Infow("migrations_rolled_back", "steps", steps)
	return nil
}

// Version returns the applied schema version; 0 for a fresh database.
func Version(db *sql.DB) (uint, bool, error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
