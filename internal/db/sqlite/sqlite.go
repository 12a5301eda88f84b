// Package sqlite opens the catalog database and keeps its schema current.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

//go:embed migrations/*.sql
var migrations embed.FS

// Config holds connection parameters for the catalog database.
type Config struct {
	Path        string
	BusyTimeout time.Duration
}

// DSN builds the go-sqlite3 connection string. Foreign keys are enabled per connection
// so that image rows cascade with their product.
func (c Config) DSN() string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.FormatInt(c.BusyTimeout.Milliseconds(), 10))
	return "file:" + c.Path + "?" + q.Encode()
}

// Open applies pending migrations and returns a handle limited to one connection.
// The engine does not tolerate concurrent writers, so callers share this single connection.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	if err := Migrate(cfg); err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// Migrate runs the embedded migrations on a dedicated handle.
// migrate.Close closes the database it was given, so the serving handle is never passed in.
func Migrate(cfg Config) error {
	conn, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration handle: %w", err)
	}
	conn.SetMaxOpenConns(1)

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
