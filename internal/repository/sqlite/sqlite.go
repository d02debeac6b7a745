// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code.
//
// SCHEMA:
// Four tables (users, messages, follows, likes) are created by the SQL files
// under migrations/, embedded into the binary and applied with
// golang-migrate. Reset() runs every down migration and then every up
// migration, giving tests a clean slate.
//
// WRITES go through a Session (session.go): a unit of work that queues
// inserts, updates and deletes and applies them in one transaction.
// READS are plain methods on *Store (user.go, message.go).
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/warbler/internal/repository"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MemoryDSN opens a private in-memory database, lost when the Store closes.
const MemoryDSN = ":memory:"

// Config is the explicit configuration of a Store. Nothing is read from the
// environment here; callers (cmd/warbler, tests) decide where the data lives.
type Config struct {
	// DSN is a file path ("data/warbler.db"), a "file:" URI, or MemoryDSN.
	DSN string
}

// Store wraps a sql.DB connection pool and provides repository methods.
type Store struct {
	conn     *sql.DB
	migrator *migrate.Migrate
	logger   *slog.Logger
}

// compile-time check that *Store implements repository.Store
var _ repository.Store = (*Store)(nil)

// New opens the database described by cfg and applies all pending
// migrations.
//
// Foreign keys are OFF by default in SQLite. They are switched on through
// the DSN so every pooled connection gets them, not just the first one.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sqlite: DSN must not be empty")
	}

	conn, err := sql.Open("sqlite", withPragmas(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is its own database. Pin the pool to one
	// connection so every statement sees the same tables.
	if isMemory(cfg.DSN) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	s := &Store{conn: conn, logger: logger}

	if err := s.initMigrator(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: preparing migrations: %w", err)
	}
	if err := s.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Begin starts a new unit of work. It satisfies repository.Store.
func (s *Store) Begin() repository.UnitOfWork {
	return s.NewSession()
}

// Migrate applies every pending up migration. Already up to date is not an error.
func (s *Store) Migrate() error {
	if err := s.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: applying migrations: %w", err)
	}
	version, _, err := s.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("sqlite: reading schema version: %w", err)
	}
	s.logger.Debug("schema up to date", slog.Uint64("version", uint64(version)))
	return nil
}

// Reset drops every table and recreates the schema from scratch.
// All data is lost.
func (s *Store) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: dropping tables: %w", err)
	}
	if err := s.Migrate(); err != nil {
		return err
	}
	s.logger.Info("database reset")
	return nil
}

// initMigrator wires golang-migrate to the embedded SQL files and to our own
// *sql.DB.
//
// The migrate instance is never closed: closing it would close s.conn too.
func (s *Store) initMigrator() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	m.Log = migrateLogger{s.logger}
	s.migrator = m
	return nil
}

// migrateLogger adapts slog to golang-migrate's Logger interface.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}

func isMemory(dsn string) bool {
	return dsn == MemoryDSN || strings.Contains(dsn, "mode=memory")
}

// withPragmas appends the per-connection settings to dsn.
// foreign_keys enables ON DELETE CASCADE and FK checks. busy_timeout makes
// writers wait for a lock instead of failing with SQLITE_BUSY.
// _time_format=sqlite stores time.Time as "YYYY-MM-DD HH:MM:SS.fffffffff+hh:mm".
func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}
