package config

import "time"

// JWTConfig configures the downstream OAuth2 access-token signer (C4). Keys
// are RS256; rotation produces a new kid while JWKS keeps advertising the
// retiring key until the longest access-token TTL has elapsed.
type JWTConfig struct {
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	KeyRotationTTL  time.Duration
	KeyBits         int
}

func loadJWTConfig() JWTConfig {
	return JWTConfig{
		Issuer:          getEnv("PIERRE_OAUTH_ISSUER", "https://pierre.local"),
		AccessTokenTTL:  getEnvDuration("PIERRE_ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDuration("PIERRE_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		KeyRotationTTL:  getEnvDuration("PIERRE_KEY_ROTATION_TTL", 7*24*time.Hour),
		KeyBits:         getEnvInt("PIERRE_JWT_KEY_BITS", 2048),
	}
}
