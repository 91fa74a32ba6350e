// Package store is Pierre's persistence layer: one schema, two backends.
// Postgres (via jmoiron/sqlx + lib/pq) is the production target; SQLite
// (via mattn/go-sqlite3) backs single-binary deployments and tests. Every
// repository is written once against sqlx and a shared, `?`-placeholder
// query string that sqlx.DB.Rebind translates to each driver's bindvar
// style, so the two backends never fork repository logic.
package store

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/logx"
)

//go:embed schema_postgres.sql
var postgresSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

// Store bundles a live connection with the backend it was opened
// against, since a handful of repository queries (JSON column types,
// upsert syntax) still need to know which dialect they're talking to.
type Store struct {
	DB      *sqlx.DB
	Backend config.DatabaseBackend
}

// Open connects to the backend named by cfg.URL's scheme and applies
// the pool tunables from cfg. Both backends are verified with a ping
// bounded by cfg.AcquireTimeout.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	driver, dsn := driverAndDSN(cfg)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, storeErrors.NewWithCause(ErrBackend, err).WithDetail("driver", driver)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Backend == config.BackendSQLite {
		// SQLite serializes writers; a single connection avoids
		// "database is locked" errors under concurrent access.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AcquireTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, storeErrors.NewWithCause(ErrBackend, err).WithDetail("driver", driver)
	}

	logx.WithFields(logx.Fields{"backend": cfg.Backend}).Info("store: connected")
	return &Store{DB: db, Backend: cfg.Backend}, nil
}

func driverAndDSN(cfg config.DatabaseConfig) (driver, dsn string) {
	if cfg.Backend == config.BackendSQLite {
		return "sqlite3", strings.TrimPrefix(cfg.URL, "sqlite://")
	}
	return "postgres", cfg.URL
}

// Migrate applies the schema for the store's backend. Both schemas are
// pure CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS, so
// Migrate is safe to call on every boot.
func (s *Store) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if s.Backend == config.BackendSQLite {
		schema = sqliteSchema
	}
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return storeErrors.NewWithCause(ErrBackend, err).WithDetail("step", "migrate")
	}
	return nil
}

// Rebind rewrites a `?`-placeholder query for the store's backend.
func (s *Store) Rebind(query string) string {
	return s.DB.Rebind(query)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// NewID returns a random UUIDv4 string, used as the primary key for
// every table in this package.
func NewID() string {
	return uuid.NewString()
}

// nowUTC is the single clock read shared by repositories that stamp
// created_at/updated_at, so a row's timestamps never straddle a leap
// second boundary introduced by calling time.Now() twice.
func nowUTC() time.Time {
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || // postgres unique_violation
		strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value")
}

func wrapBackendErr(err error, op string) error {
	return storeErrors.NewWithCause(ErrBackend, err).WithDetail("op", op)
}
