package login

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/store"
)

// Service authenticates dashboard operators against store.UserRepository
// and issues the session cookie that fronts oauth2as's /oauth2/authorize
// consent screen. It implements oauth2as.ResourceOwnerResolver.
type Service struct {
	users  *store.UserRepository
	hasher *Hasher
	signer *sessionSigner
	cfg    config.SessionConfig
}

// NewService builds the login service. It returns an error if
// cfg.Secret is empty — the session signer refuses to start unsigned,
// the same boot-time refusal pattern crypto.Keyring uses for MasterKey.
func NewService(users *store.UserRepository, cfg config.SessionConfig) (*Service, error) {
	signer, err := newSessionSigner(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{users: users, hasher: NewHasher(), signer: signer, cfg: cfg}, nil
}

// Login verifies email/password within tenantID and, on success,
// returns a signed session token the caller sets as a cookie.
func (s *Service) Login(ctx context.Context, tenantID kernel.TenantID, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, tenantID, email)
	if err != nil {
		return "", errx.Unauthenticated("invalid email or password")
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return "", errx.Unauthenticated("invalid email or password")
	}
	return s.signer.issue(user.ID, user.TenantID, user.Email)
}

// Register hashes password and creates a new user, the counterpart to
// Login for first-time dashboard signup.
func (s *Service) Register(ctx context.Context, tenantID kernel.TenantID, email, name, password string) (*store.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := store.User{
		ID:           kernel.NewUserID(store.NewID()),
		TenantID:     tenantID,
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetCookie attaches the session token to the response the teacher's
// TokenMiddleware falls back to reading ("access_token" there; this
// deployment's name is configurable via PIERRE_SESSION_COOKIE).
func (s *Service) SetCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   int(s.cfg.TTL.Seconds()),
	})
}

// ClearCookie logs the session out client-side.
func (s *Service) ClearCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteLaxMode,
		MaxAge:   -1,
	})
}

// ResolveUser implements oauth2as.ResourceOwnerResolver: it reads the
// session cookie, verifies it, and reports the logged-in identity.
// Unlike authmw's Authenticate, a failure here does not fail the
// request — it's ok=false, and the caller (oauth2as's /oauth2/authorize
// handler) redirects to the login page instead of 401ing.
func (s *Service) ResolveUser(c *fiber.Ctx) (kernel.UserID, kernel.TenantID, bool) {
	raw := c.Cookies(s.cfg.CookieName)
	if raw == "" {
		return "", "", false
	}
	claims, err := s.signer.verify(raw)
	if err != nil {
		return "", "", false
	}
	return kernel.NewUserID(claims.Subject), claims.TenantID, true
}
