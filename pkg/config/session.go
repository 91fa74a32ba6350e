package config

import "time"

// SessionConfig configures the dashboard login session token — an HS256
// cookie JWT distinct from the RS256 OAuth2 access tokens JWTConfig
// governs, since the session never needs third-party verification.
type SessionConfig struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	CookieName string
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		Secret:     getEnv("PIERRE_SESSION_SECRET", ""),
		Issuer:     getEnv("PIERRE_SESSION_ISSUER", "pierre-dashboard"),
		TTL:        getEnvDuration("PIERRE_SESSION_TTL", 12*time.Hour),
		CookieName: getEnv("PIERRE_SESSION_COOKIE", "pierre_session"),
	}
}
