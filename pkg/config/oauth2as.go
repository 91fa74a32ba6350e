package config

import "time"

// OAuth2ASConfig configures the authorization-server endpoints (C4).
type OAuth2ASConfig struct {
	AuthCodeTTL    time.Duration
	AllowPlainPKCE bool
}

func loadOAuth2ASConfig() OAuth2ASConfig {
	ttl := getEnvDuration("PIERRE_AUTH_CODE_TTL", 10*time.Minute)
	if ttl > 10*time.Minute {
		ttl = 10 * time.Minute
	}
	return OAuth2ASConfig{
		AuthCodeTTL:    ttl,
		AllowPlainPKCE: getEnvBool("PIERRE_ALLOW_PLAIN_PKCE", false),
	}
}
