package config

import (
	"fmt"
	"time"
)

// RedisConfig configures the Redis-backed OAuth pending-state store (C5)
// and the jobx background queue. When Host is empty (Enabled reports false)
// the process falls back to an in-process state store, logged as a warning
// at boot, and runs without the jobx queue.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	StateTTL time.Duration
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnvInt("REDIS_PORT", 6379),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		StateTTL: getEnvDuration("PIERRE_OAUTH_STATE_TTL", 10*time.Minute),
	}
}
