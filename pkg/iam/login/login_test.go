package login

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/store"
)

func newTestService(t *testing.T) (*Service, *store.Store, kernel.TenantID) {
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

	tenantID := kernel.NewTenantID("login-tenant-1")
	tenants := store.NewTenantRepository(s)
	if err := tenants.Create(context.Background(), store.Tenant{
		ID: tenantID, Name: "login-tenant", Plan: kernel.PlanFree, WrappedKey: []byte("wrapped"),
	}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	svc, err := NewService(store.NewUserRepository(s), config.SessionConfig{
		Secret: "test-session-secret", Issuer: "pierre-test", TTL: time.Hour, CookieName: "pierre_session",
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, s, tenantID
}

func TestNewServiceRejectsEmptySecret(t *testing.T) {
	if _, err := NewService(nil, config.SessionConfig{}); err == nil {
		t.Fatal("expected error for empty session secret")
	}
}

func TestRegisterThenLoginRoundTrip(t *testing.T) {
	svc, _, tenantID := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, tenantID, "rider@example.com", "Rider", "hunter2hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svc.Login(ctx, tenantID, "rider@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty session token")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, _, tenantID := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, tenantID, "rider@example.com", "Rider", "hunter2hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, tenantID, "rider@example.com", "wrong-password"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	svc, _, tenantID := newTestService(t)
	if _, err := svc.Login(context.Background(), tenantID, "ghost@example.com", "whatever"); err == nil {
		t.Fatal("expected error for unknown email")
	}
}

func TestResolveUserRoundTripsThroughCookie(t *testing.T) {
	svc, _, tenantID := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, tenantID, "rider@example.com", "Rider", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svc.Login(ctx, tenantID, "rider@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	app := fiber.New()
	app.Get("/probe", func(c *fiber.Ctx) error {
		svc.SetCookie(c, token)
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/whoami", func(c *fiber.Ctx) error {
		userID, gotTenant, ok := svc.ResolveUser(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		if userID != user.ID || gotTenant != tenantID {
			return c.SendStatus(fiber.StatusConflict)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/probe", nil))
	if err != nil {
		t.Fatalf("app.Test(/probe): %v", err)
	}
	var cookieValue string
	for _, c := range resp.Cookies() {
		if c.Name == "pierre_session" {
			cookieValue = c.Value
		}
	}
	if cookieValue == "" {
		t.Fatal("expected session cookie to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "pierre_session", Value: cookieValue})
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test(/whoami): %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestResolveUserMissingCookieFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	app := fiber.New()
	app.Get("/whoami", func(c *fiber.Ctx) error {
		if _, _, ok := svc.ResolveUser(c); ok {
			return c.SendStatus(fiber.StatusOK)
		}
		return c.SendStatus(fiber.StatusUnauthorized)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
