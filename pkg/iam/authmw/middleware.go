package authmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/oauth2as"
	"github.com/pierre-platform/pierre/pkg/store"
)

// Middleware populates kernel.AuthContext for every authenticated
// request, per spec §4.8's order: parse Authorization header, identify
// token shape (JWT vs opaque API key), validate, populate.
type Middleware struct {
	issuer  *oauth2as.TokenIssuer
	apiKeys *store.APIKeyRepository
	tenants *store.TenantRepository
}

func NewMiddleware(issuer *oauth2as.TokenIssuer, apiKeys *store.APIKeyRepository, tenants *store.TenantRepository) *Middleware {
	return &Middleware{issuer: issuer, apiKeys: apiKeys, tenants: tenants}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Authenticate validates the bearer token (JWT or opaque API key) and
// stashes the resulting *kernel.AuthContext at c.Locals("auth") — the
// seam every protocol adapter's authFromFiber helper reads from.
// Failures fail the request outright; spec §4.8 forbids silently
// degrading to an anonymous context.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return writeUnauthenticated(c, "missing bearer token")
		}
		authCtx, err := m.authenticate(c.Context(), token)
		if err != nil {
			return writeUnauthenticated(c, err.Error())
		}
		c.Locals("auth", authCtx)
		return c.Next()
	}
}

// AuthenticateHTTP runs the same dispatch algorithm as Authenticate
// against a raw net/http request, for transports that run outside
// Fiber's router — namely mcp.Handler's WebSocket transport, which
// upgrades the connection itself and so needs an mcp.AuthResolver
// rather than a fiber.Handler.
func (m *Middleware) AuthenticateHTTP(r *http.Request) (kernel.AuthContext, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return kernel.AuthContext{}, false
	}
	authCtx, err := m.authenticate(r.Context(), parts[1])
	if err != nil {
		return kernel.AuthContext{}, false
	}
	return *authCtx, true
}

func (m *Middleware) authenticate(ctx context.Context, token string) (*kernel.AuthContext, error) {
	if looksLikeAPIKey(token) {
		return m.authenticateAPIKey(ctx, token)
	}
	return m.authenticateJWT(ctx, token)
}

func (m *Middleware) authenticateJWT(ctx context.Context, token string) (*kernel.AuthContext, error) {
	claims, err := m.issuer.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	userID := kernel.NewUserID(claims.Subject)
	plan, err := m.planFor(ctx, claims.TenantID)
	if err != nil {
		return nil, err
	}
	var clientID kernel.ClientID
	if len(claims.Audience) > 0 {
		clientID = kernel.NewClientID(claims.Audience[0])
	}
	return &kernel.AuthContext{
		UserID:   &userID,
		TenantID: claims.TenantID,
		ClientID: clientID,
		Scopes:   claims.Scopes,
		Plan:     plan,
		IsAPIKey: false,
		Source:   kernel.AuthSourceJWT,
	}, nil
}

func (m *Middleware) authenticateAPIKey(ctx context.Context, raw string) (*kernel.AuthContext, error) {
	prefix := prefixOf(raw)
	candidates, err := m.apiKeys.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if !secureCompareHash(raw, candidate.KeyHash) {
			continue
		}
		if candidate.ExpiresAt != nil && candidate.ExpiresAt.Before(nowFunc()) {
			return nil, errAPIKeyExpired
		}
		plan, err := m.planFor(ctx, candidate.TenantID)
		if err != nil {
			return nil, err
		}
		go func(id string) { _ = m.apiKeys.TouchLastUsed(context.Background(), id) }(candidate.ID)

		authCtx := &kernel.AuthContext{
			TenantID: candidate.TenantID,
			Scopes:   candidate.Scopes,
			Plan:     plan,
			IsAPIKey: true,
			Source:   kernel.AuthSourceAPIKey,
		}
		if candidate.UserID.Valid {
			userID := kernel.NewUserID(candidate.UserID.String)
			authCtx.UserID = &userID
		}
		return authCtx, nil
	}
	return nil, errAPIKeyNotFound
}

func (m *Middleware) planFor(ctx context.Context, tenantID kernel.TenantID) (kernel.PlanTier, error) {
	tenant, err := m.tenants.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return tenant.Plan, nil
}

// RequireAdmin rejects a request whose AuthContext lacks blanket or
// admin-scoped access.
func (m *Middleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := fromLocals(c)
		if !ok {
			return writeUnauthenticated(c, "missing auth context")
		}
		if !authCtx.IsAdmin() {
			return writeForbidden(c, "admin scope required")
		}
		return c.Next()
	}
}

// RequireTenant rejects a request whose AuthContext belongs to a
// different tenant than tenantID.
func (m *Middleware) RequireTenant(tenantID kernel.TenantID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := fromLocals(c)
		if !ok {
			return writeUnauthenticated(c, "missing auth context")
		}
		if authCtx.TenantID != tenantID {
			return writeForbidden(c, "tenant mismatch")
		}
		return c.Next()
	}
}

// RequireScope rejects a request whose AuthContext doesn't carry scope,
// honoring kernel.AuthContext.HasScope's wildcard matching (e.g.
// "tools:*" satisfies a "tools:read" requirement).
func (m *Middleware) RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := fromLocals(c)
		if !ok {
			return writeUnauthenticated(c, "missing auth context")
		}
		if !authCtx.HasScope(scope) {
			return writeForbidden(c, "missing required scope: "+scope)
		}
		return c.Next()
	}
}

func fromLocals(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	authCtx, ok := c.Locals("auth").(*kernel.AuthContext)
	if !ok || authCtx == nil {
		return nil, false
	}
	return authCtx, true
}

func writeUnauthenticated(c *fiber.Ctx, reason string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": fiber.Map{"code": "UNAUTHENTICATED", "message": reason}})
}

func writeForbidden(c *fiber.Ctx, reason string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": fiber.Map{"code": "FORBIDDEN", "message": reason}})
}
