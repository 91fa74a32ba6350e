package config

// RateLimitConfig holds rate-limit defaults loaded from the environment.
// The tool dispatcher (C6) does not read it: its per-tenant token buckets
// take their sizes from the plan-tier table in pkg/tools.
type RateLimitConfig struct {
	DefaultRequestsPerMinute int
	DefaultBurst             int
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		DefaultRequestsPerMinute: getEnvInt("PIERRE_RATE_LIMIT_RPM", 60),
		DefaultBurst:             getEnvInt("PIERRE_RATE_LIMIT_BURST", 10),
	}
}
