package login

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
)

// sessionClaims is the HS256 dashboard session token — deliberately
// thinner than oauth2as's AccessClaims since it only ever has to
// answer "which user, which tenant" for ResolveUser.
type sessionClaims struct {
	TenantID kernel.TenantID `json:"tenant_id"`
	Email    string          `json:"email"`
	jwt.RegisteredClaims
}

// sessionSigner issues and verifies the dashboard's HS256 session
// cookie, the adapted replacement for the teacher's JWTService.
type sessionSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func newSessionSigner(cfg config.SessionConfig) (*sessionSigner, error) {
	if cfg.Secret == "" {
		return nil, errx.Internal("PIERRE_SESSION_SECRET is not set")
	}
	return &sessionSigner{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: cfg.TTL}, nil
}

func (s *sessionSigner) issue(userID kernel.UserID, tenantID kernel.TenantID, email string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		TenantID: tenantID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errx.Wrap(err, "sign session token", errx.TypeInternal)
	}
	return signed, nil
}

func (s *sessionSigner) verify(raw string) (*sessionClaims, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errx.Unauthenticated("unexpected session token signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errx.Unauthenticated("invalid session token")
	}
	return &claims, nil
}
