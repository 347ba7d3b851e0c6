package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsTable keeps the version bookkeeping apart from other schemas
// sharing the database.
const MigrationsTable = "facematch_schema_migrations"

// ErrSchemaOutdated is returned by EnsureSchema when migrations are pending
// and automatic migration is off.
var ErrSchemaOutdated = errors.New("verification schema is outdated")

// Status describes where the database stands against the embedded migrations.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
}

// Pending reports whether embedded migrations have not been applied yet.
func (s Status) Pending() bool {
	return s.Current < s.Latest
}

// Migrator applies the verification record schema
type Migrator struct {
	m      *migrate.Migrate
	latest uint
}

func newSource() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	return src, nil
}

// NewMigrator creates a migrator bound to dbName
func NewMigrator(db *sql.DB, dbName string) (*Migrator, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}

	latest, err := lastVersion(src)
	if err != nil {
		return nil, err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		DatabaseName:    dbName,
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{m: m, latest: latest}, nil
}

// LatestVersion returns the highest migration version embedded in the binary.
func LatestVersion() (uint, error) {
	src, err := newSource()
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	return lastVersion(src)
}

func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("read first migration: %w", err)
	}
	for {
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read migration after %d: %w", v, err)
		}
		v = next
	}
}

// Up runs all pending migrations. No pending migration is not an error.
func (m *Migrator) Up() error {
	err := m.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Steps moves n migrations forward (n > 0) or back (n < 0).
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return errors.New("steps must not be zero")
	}
	if err := m.m.Steps(n); err != nil {
		return fmt.Errorf("migrate %+d steps: %w", n, err)
	}
	return nil
}

// Status reports the applied version; Current is 0 when nothing was applied.
func (m *Migrator) Status() (Status, error) {
	st := Status{Latest: m.latest}

	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("get version: %w", err)
	}

	st.Current = version
	st.Dirty = dirty
	return st, nil
}

// Force sets the migration version without running migrations (DANGEROUS)
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return fmt.Errorf("close source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("close database: %w", dbErr)
	}
	return nil
}

// EnsureSchema checks the verification schema before the server starts
// writing records. With autoMigrate it applies pending migrations,
// otherwise pending migrations yield ErrSchemaOutdated.
func EnsureSchema(ctx context.Context, dsn string, autoMigrate bool) (Status, error) {
	db, err := OpenSQL(ctx, dsn)
	if err != nil {
		return Status{}, err
	}
	defer func() { _ = db.Close() }()

	m, err := NewMigrator(db, DatabaseName(dsn))
	if err != nil {
		return Status{}, err
	}
	defer func() { _ = m.Close() }()

	st, err := m.Status()
	if err != nil {
		return st, err
	}
	if st.Dirty {
		return st, fmt.Errorf("schema version %d is dirty, fix it with migrate -action force", st.Current)
	}
	if !st.Pending() {
		return st, nil
	}
	if !autoMigrate {
		return st, fmt.Errorf("%w: at version %d, latest is %d", ErrSchemaOutdated, st.Current, st.Latest)
	}

	if err := m.Up(); err != nil {
		return st, err
	}
	return m.Status()
}

// DatabaseName extracts the database from a postgres URL, falling back to
// "facematch" for keyword/value DSNs.
func DatabaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Path == "" || u.Path == "/" {
		return "facematch"
	}
	return strings.TrimPrefix(u.Path, "/")
}
