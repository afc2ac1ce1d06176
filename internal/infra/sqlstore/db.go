// Package sqlstore implements the expense and link stores on database/sql,
// backed by SQLite for local runs and tests or PostgreSQL through pgx.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/dvloznov/gastos/internal/domain"
	"github.com/google/uuid"

	// Register the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	// Register the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		category TEXT NOT NULL,
		date_ms BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_owner_date ON expenses (owner_id, date_ms)`,
	`CREATE TABLE IF NOT EXISTS link_tokens (
		token TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		created_at_ms BIGINT NOT NULL,
		expires_at_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_links (
		chat_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		linked BOOLEAN NOT NULL,
		linked_at_ms BIGINT NOT NULL
	)`,
}

// DB wraps a sql.DB connection and implements domain.ExpenseStore and
// domain.LinkStore.
type DB struct {
	conn *sql.DB
	sb   squirrel.StatementBuilderType

	now   func() time.Time
	newID func() string
}

// Open connects to dsn with the given driver and runs migrations.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var placeholder squirrel.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholder = squirrel.Question
	case DriverPgx:
		placeholder = squirrel.Dollar
	default:
		return nil, fmt.Errorf("Open: unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if driver == DriverSQLite {
		// Each connection to ":memory:" is its own database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	db := &DB{
		conn:  conn,
		sb:    squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		now:   time.Now,
		newID: uuid.NewString,
	}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	for i, m := range migrations {
		if _, err := db.conn.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migrate: step %d: %w", i, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

func upstream(err error) error {
	return domain.Upstream("sqlstore", err)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
