package config

import "time"

// DatabaseBackend selects the persistence layer implementation (C2).
type DatabaseBackend string

const (
	BackendPostgres DatabaseBackend = "postgres"
	BackendSQLite   DatabaseBackend = "sqlite"
)

// DatabaseConfig configures the persistence layer. PIERRE_DATABASE_URL's
// scheme ("sqlite://" or anything else, treated as Postgres) selects the
// backend. An unset PIERRE_DATABASE_URL is not rejected: it falls back to
// sqlite://pierre.db.
type DatabaseConfig struct {
	URL             string
	Backend         DatabaseBackend
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

func loadDatabaseConfig() DatabaseConfig {
	url := getEnv("PIERRE_DATABASE_URL", "sqlite://pierre.db")
	backend := BackendPostgres
	if len(url) >= 9 && url[:9] == "sqlite://" {
		backend = BackendSQLite
	}

	return DatabaseConfig{
		URL:             url,
		Backend:         backend,
		MaxOpenConns:    getEnvInt("POSTGRES_MAX_CONNECTIONS", 20),
		MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNECTIONS", 5),
		ConnMaxLifetime: getEnvDuration("POSTGRES_CONN_MAX_LIFETIME", time.Hour),
		AcquireTimeout:  getEnvDuration("POSTGRES_ACQUIRE_TIMEOUT", 5*time.Second),
	}
}
