package oauth2as

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
)

// AccessClaims is the RS256 JWT payload Pierre issues downstream
// clients. aud carries the client id, tenant the tenant id, matching
// the round-trip law in the spec's testable properties.
type AccessClaims struct {
	TenantID kernel.TenantID `json:"tenant"`
	Scopes   []string        `json:"scopes"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies downstream access tokens.
type TokenIssuer struct {
	keys   *KeyManager
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(keys *KeyManager, cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{keys: keys, issuer: cfg.Issuer, ttl: cfg.AccessTokenTTL}
}

// IssueAccessToken signs a JWT for userID (empty for client_credentials,
// per spec §4.4) scoped to tenantID and audience clientID.
func (i *TokenIssuer) IssueAccessToken(userID kernel.UserID, tenantID kernel.TenantID, clientID kernel.ClientID, scopes []string) (string, time.Time, error) {
	kid, priv := i.keys.SigningKey()
	if priv == nil {
		return "", time.Time{}, errx.Internal("no active signing key")
	}
	now := time.Now()
	expiresAt := now.Add(i.ttl)

	subject := userID.String()
	claims := AccessClaims{
		TenantID: tenantID,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID.String()},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(priv)
	if err != nil {
		return "", time.Time{}, errx.Wrap(err, "sign access token", errx.TypeInternal)
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken parses and validates a bearer token against the
// current JWKS, returning its claims.
func (i *TokenIssuer) VerifyAccessToken(ctx context.Context, raw string) (*AccessClaims, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(raw, &claims, i.keys.Keyfunc(ctx))
	if err != nil {
		return nil, errx.Unauthenticated("invalid or expired access token").WithDetail("cause", err.Error())
	}
	if !token.Valid {
		return nil, errx.Unauthenticated("invalid access token")
	}
	return &claims, nil
}

// NewOpaqueToken generates a cryptographically random refresh-token
// value (≥256 bits) and its SHA-256 hash, the only form persisted.
func NewOpaqueToken() (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err = rand.Read(b); err != nil {
		return "", "", errx.Wrap(err, "generate refresh token", errx.TypeInternal)
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken is the one-way digest stored for an opaque refresh token;
// the raw value is never persisted.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
