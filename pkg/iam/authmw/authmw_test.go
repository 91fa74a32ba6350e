package authmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/oauth2as"
	"github.com/pierre-platform/pierre/pkg/store"
)

func newRequest(path, bearer string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

type harness struct {
	store    *store.Store
	apiKeys  *store.APIKeyRepository
	tenants  *store.TenantRepository
	issuer   *oauth2as.TokenIssuer
	mw       *Middleware
	tenantID kernel.TenantID
	userID   kernel.UserID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.Open(config.DatabaseConfig{
		URL:             "sqlite://file::memory:?cache=shared",
		Backend:         config.BackendSQLite,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		AcquireTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tenantID := kernel.NewTenantID("authmw-tenant-1")
	userID := kernel.NewUserID("authmw-user-1")

	tenants := store.NewTenantRepository(s)
	if err := tenants.Create(context.Background(), store.Tenant{
		ID: tenantID, Name: "authmw-tenant", Plan: kernel.PlanPro, WrappedKey: []byte("wrapped"),
	}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	signingKeys := store.NewSigningKeyRepository(s)
	km := oauth2as.NewKeyManager(signingKeys, config.JWTConfig{KeyBits: 512})
	if err := km.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	issuer := oauth2as.NewTokenIssuer(km, config.JWTConfig{
		Issuer:         "https://pierre.test",
		AccessTokenTTL: time.Hour,
	})

	apiKeys := store.NewAPIKeyRepository(s)
	mw := NewMiddleware(issuer, apiKeys, tenants)

	return &harness{store: s, apiKeys: apiKeys, tenants: tenants, issuer: issuer, mw: mw, tenantID: tenantID, userID: userID}
}

func newAppWithAuth(mw *Middleware) *fiber.App {
	app := fiber.New()
	app.Get("/probe", mw.Authenticate(), func(c *fiber.Ctx) error {
		authCtx, _ := fromLocals(c)
		return c.JSON(authCtx)
	})
	app.Get("/admin", mw.Authenticate(), mw.RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/scoped", mw.Authenticate(), mw.RequireScope("tools:read"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func newAppWithTenantGate(mw *Middleware, tenantID kernel.TenantID) *fiber.App {
	app := fiber.New()
	app.Get("/tenant", mw.Authenticate(), mw.RequireTenant(tenantID), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func doGet(t *testing.T, app *fiber.App, path, bearer string) int {
	t.Helper()
	req := newRequest(path, bearer)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp.StatusCode
}

func TestAuthenticateJWTHappyPath(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.IssueAccessToken(h.userID, h.tenantID, kernel.NewClientID("client-1"), []string{"tools:*"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/probe", token); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestAuthenticateJWTMalformedFails(t *testing.T) {
	h := newHarness(t)
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/probe", "not-a-real-jwt"); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestAuthenticateMissingHeaderFails(t *testing.T) {
	h := newHarness(t)
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/probe", ""); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestAuthenticateAPIKeyHappyPath(t *testing.T) {
	h := newHarness(t)
	raw, prefix, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := h.apiKeys.Create(context.Background(), store.APIKey{
		TenantID: h.tenantID, KeyPrefix: prefix, KeyHash: hash, Scopes: []string{"tools:*"},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/probe", raw); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestAuthenticateAPIKeyRevokedFails(t *testing.T) {
	h := newHarness(t)
	raw, prefix, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := h.apiKeys.Create(context.Background(), store.APIKey{
		TenantID: h.tenantID, KeyPrefix: prefix, KeyHash: hash,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	var rows []store.APIKey
	rows, err = h.apiKeys.FindByPrefix(context.Background(), prefix)
	if err != nil || len(rows) != 1 {
		t.Fatalf("FindByPrefix: %v (%d rows)", err, len(rows))
	}
	if err := h.apiKeys.Revoke(context.Background(), rows[0].ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/probe", raw); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked key, got %d", status)
	}
}

func TestAuthenticateAPIKeyWrongSecretFails(t *testing.T) {
	h := newHarness(t)
	_, prefix, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := h.apiKeys.Create(context.Background(), store.APIKey{
		TenantID: h.tenantID, KeyPrefix: prefix, KeyHash: hash,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	forged := prefix + "0000000000000000000000000000000000000000"
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/probe", forged); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for forged key, got %d", status)
	}
}

func TestRequireAdminRejectsNonAdmin(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.IssueAccessToken(h.userID, h.tenantID, kernel.NewClientID("client-1"), []string{"tools:*"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/admin", token); status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestRequireAdminAllowsWildcardScope(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.IssueAccessToken(h.userID, h.tenantID, kernel.NewClientID("client-1"), []string{"*"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/admin", token); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestRequireScopeHonorsWildcard(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.IssueAccessToken(h.userID, h.tenantID, kernel.NewClientID("client-1"), []string{"tools:*"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/scoped", token); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestRequireTenantRejectsMismatch(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.IssueAccessToken(h.userID, h.tenantID, kernel.NewClientID("client-1"), []string{"tools:*"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	app := newAppWithTenantGate(h.mw, kernel.NewTenantID("a-different-tenant"))
	if status := doGet(t, app, "/tenant", token); status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestRequireTenantAllowsMatch(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.IssueAccessToken(h.userID, h.tenantID, kernel.NewClientID("client-1"), []string{"tools:*"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	app := newAppWithTenantGate(h.mw, h.tenantID)
	if status := doGet(t, app, "/tenant", token); status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
}

func TestRequireScopeRejectsMissingScope(t *testing.T) {
	h := newHarness(t)
	token, _, err := h.issuer.IssueAccessToken(h.userID, h.tenantID, kernel.NewClientID("client-1"), []string{"billing:read"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	app := newAppWithAuth(h.mw)
	if status := doGet(t, app, "/scoped", token); status != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}
