// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C compiler is
// needed. The schema lives in migrations/*.sql, embedded into the binary and
// applied with goose on startup.
//
// DATABASE/SQL REMINDER:
//   - sql.DB      : a connection pool (NOT a single connection!)
//   - sql.Tx      : a transaction; every statement inside it must use the Tx
//   - sql.Rows    : multiple result rows (must be closed!)
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// MemoryPath opens a private in-memory database. Handy for tests.
const MemoryPath = ":memory:"

// DB wraps a sql.DB connection pool and implements the user and recipe
// repositories. Attribute repositories are obtained with Attributes(kind).
type DB struct {
	conn *sql.DB
}

// queryer is the subset of *sql.DB and *sql.Tx the query helpers need, so
// the same helper runs inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath and brings the schema up to date.
//
// dbPath examples:
//   - "data/recipes.db"  → file-based database (persistent, WAL mode)
//   - ":memory:"         → in-memory database (lost on close)
//
// Pragmas are passed in the DSN so that every pooled connection gets them,
// not just the first one. Foreign keys must be on for the cascade deletes.
//
// Transactions begin IMMEDIATE: every withTx caller writes, and a deferred
// transaction that reads first cannot wait out a concurrent writer (it
// fails with SQLITE_BUSY regardless of busy_timeout).
func New(ctx context.Context, dbPath string) (*DB, error) {
	pragmas := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)", "_txlock=immediate"}
	if dbPath != MemoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	dsn := dbPath + "?" + strings.Join(pragmas, "&")

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is a separate, empty database.
	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies every pending migration from the embedded migrations/ dir.
// goose records applied versions in goose_db_version, so this is idempotent.
func (db *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("opening embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// on error or panic.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful Commit returns sql.ErrTxDone; harmless.
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// placeholders returns "?, ?, ?" with n question marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// int64Args converts ids to a []any suitable for a variadic query call.
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
