package oauth2as

import (
	"context"
	"time"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/store"
)

// Service is the composition-root entry point for C4: it owns key
// bootstrap/rotation and exposes the pieces cmd/pierre wires into the
// HTTP server and the downstream auth middleware.
type Service struct {
	Keys     *KeyManager
	Issuer   *TokenIssuer
	Handlers *Handlers

	rotationTTL time.Duration
	accessTTL   time.Duration
}

// NewService builds the C4 stack. owners is the seam into whatever
// session mechanism authenticates the dashboard user approving
// /oauth2/authorize requests.
func NewService(
	s *store.Store,
	jwtCfg config.JWTConfig,
	asCfg config.OAuth2ASConfig,
	owners ResourceOwnerResolver,
	loginURL string,
) *Service {
	keys := NewKeyManager(store.NewSigningKeyRepository(s), jwtCfg)
	issuer := NewTokenIssuer(keys, jwtCfg)
	handlers := NewHandlers(
		store.NewOAuthClientRepository(s),
		store.NewAuthorizationCodeRepository(s),
		store.NewRefreshTokenRepository(s),
		keys,
		issuer,
		owners,
		asCfg,
		loginURL,
	)
	return &Service{
		Keys:        keys,
		Issuer:      issuer,
		Handlers:    handlers,
		rotationTTL: jwtCfg.KeyRotationTTL,
		accessTTL:   jwtCfg.AccessTokenTTL,
	}
}

// Start bootstraps the active signing key (generating one on first
// boot) and, if ctx is not already done, launches the background
// rotation loop. It blocks only for the bootstrap step.
func (svc *Service) Start(ctx context.Context) error {
	if err := svc.Keys.Bootstrap(ctx); err != nil {
		return err
	}
	go svc.rotationLoop(ctx)
	return nil
}

// rotationLoop rotates the signing key on a fixed schedule. The
// retiring key stays verifiable for one access-token TTL past
// rotation, so tokens minted moments before a rotation still validate
// against JWKS until they expire on their own.
func (svc *Service) rotationLoop(ctx context.Context) {
	if svc.rotationTTL <= 0 {
		return
	}
	ticker := time.NewTicker(svc.rotationTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			retireAt := time.Now().Add(svc.accessTTL)
			if err := svc.Keys.Rotate(ctx, retireAt); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.WithError(err).Warn("oauth2as: scheduled key rotation failed")
			}
		}
	}
}
