// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. A job tracker
// for one person (or a handful of friends) is exactly the workload it is good at,
// and tests get a fresh database with ":memory:".
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// migrationsFS holds the numbered *.up.sql / *.down.sql files.
// go:embed compiles them into the binary, so the server never depends on
// the working directory to find its schema.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB connection pool and provides repository methods.
//
// The repository interfaces are served by per-table views (Users, Records,
// Applications) that all share this one connection, so cross-table queries
// like the isApplied subquery stay plain SQL.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/jobtracker.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	// "sqlite" is the driver name registered by modernc.org/sqlite.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SINGLE CONNECTION:
	// SQLite allows one writer at a time anyway, and every ":memory:"
	// connection is a separate, empty database. Pinning the pool to one
	// connection makes in-memory databases behave like file ones and turns
	// concurrent writes into a queue instead of SQLITE_BUSY errors.
	//
	// Consequence: never start a second query while *sql.Rows is still open.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. We rely on them for
	// ON DELETE CASCADE from records to record_applications.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PingContext reports whether the database is reachable. Used by /healthz.
// With a single pooled connection the wait for it is bounded by ctx too.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies every pending migration with golang-migrate.
//
// golang-migrate records the applied version in schema_migrations, so
// restarting the server is a no-op and adding 000004_*.up.sql later is picked
// up automatically.
//
// We deliberately do NOT call m.Close(): the sqlite database driver's Close
// would close our shared *sql.DB. Only the embedded source is released.
func (db *DB) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}
	defer src.Close()

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and, if
// so, which column caused it.
//
// SQLite's message looks like "UNIQUE constraint failed: users.username".
// The extended result code tells us reliably WHAT happened; the message is
// the only place that says WHERE, so we parse the column out of it.
func uniqueViolation(err error) (column string, ok bool) {
	const marker = "UNIQUE constraint failed: "

	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	msg := sqliteErr.Error()
	code := sqliteErr.Code()
	if code != sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
		!(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, marker)) {
		return "", false
	}

	i := strings.Index(msg, marker)
	if i < 0 {
		return "", true
	}
	target := msg[i+len(marker):]
	if end := strings.IndexAny(target, " ,)"); end >= 0 {
		target = target[:end]
	}
	if dot := strings.LastIndex(target, "."); dot >= 0 {
		target = target[dot+1:]
	}
	return target, true
}

// nullString maps "" to SQL NULL so sparse UNIQUE columns accept many
// users without a value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func boolPtr(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	v := nb.Bool
	return &v
}
