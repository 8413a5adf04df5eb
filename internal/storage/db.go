// Package storage provides database access for the catalog and reader data.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Common errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidDriver = errors.New("invalid database driver")
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PoolConfig tunes the Postgres connection pool. Zero values keep database/sql defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens and pings a database. SQLite connections are limited to one
// writer.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (*sql.DB, error) {
	if driver == "sqlite" {
		driver = DriverSQLite
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDriver, driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("empty %s dsn", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		if pool.MaxOpenConns > 0 {
			db.SetMaxOpenConns(pool.MaxOpenConns)
		}
		if pool.MaxIdleConns > 0 {
			db.SetMaxIdleConns(pool.MaxIdleConns)
		}
		if pool.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(pool.ConnMaxLifetime)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return db, nil
}

var bootstrapSQLite = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		book_key TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		themes TEXT NOT NULL DEFAULT '[]',
		favorite BOOLEAN NOT NULL DEFAULT FALSE,
		isbn TEXT NOT NULL DEFAULT '',
		isbn13 TEXT NOT NULL DEFAULT '',
		isbn10 TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS reading_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		book_title TEXT NOT NULL,
		book_author TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		rating INTEGER,
		added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reading_queue_user ON reading_queue (user_id)`,
	`CREATE TABLE IF NOT EXISTS user_books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_books_user ON user_books (user_id)`,
}

var bootstrapPostgres = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id BIGSERIAL PRIMARY KEY,
		book_key TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		themes TEXT NOT NULL DEFAULT '[]',
		favorite BOOLEAN NOT NULL DEFAULT FALSE,
		isbn TEXT NOT NULL DEFAULT '',
		isbn13 TEXT NOT NULL DEFAULT '',
		isbn10 TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS reading_queue (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		book_title TEXT NOT NULL,
		book_author TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		rating INTEGER,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reading_queue_user ON reading_queue (user_id)`,
	`CREATE TABLE IF NOT EXISTS user_books (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		added_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_books_user ON user_books (user_id)`,
}

// Bootstrap creates the development tables if they do not exist. Production
// Postgres schemas, including the embedding column and match_books, are
// managed outside this service.
func Bootstrap(ctx context.Context, db DB, driver string) error {
	stmts := bootstrapSQLite
	if driver == DriverPostgres {
		stmts = bootstrapPostgres
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}
