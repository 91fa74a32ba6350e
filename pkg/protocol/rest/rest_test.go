package rest

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/oauthclient"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
	"github.com/pierre-platform/pierre/pkg/tools"
)

type testHarness struct {
	app       *fiber.App
	store     *store.Store
	providers *providers.Registry
	auth      kernel.AuthContext
}

func newHarness(t *testing.T) *testHarness {
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

	tenantID := kernel.NewTenantID("rest-tenant-1")
	userID := kernel.NewUserID("rest-user-1")

	masterKey := make([]byte, 32)
	tenantRepo := store.NewTenantRepository(s)
	kr, err := crypto.NewKeyring(base64.StdEncoding.EncodeToString(masterKey), tenantRepo)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	raw, err := crypto.GenerateTenantKey()
	if err != nil {
		t.Fatalf("GenerateTenantKey: %v", err)
	}
	wrapped, err := kr.WrapTenantKey(tenantID, raw)
	if err != nil {
		t.Fatalf("WrapTenantKey: %v", err)
	}
	if err := tenantRepo.Create(context.Background(), store.Tenant{
		ID: tenantID, Name: "rest-tenant", Plan: kernel.PlanFree, WrappedKey: wrapped,
	}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	creds := store.NewUpstreamCredentialRepository(s)
	providerRegistry := providers.NewRegistry(providers.NewSyntheticProvider())
	oc := oauthclient.New(providerRegistry, creds, kr, oauthclient.NewMemoryStateStore(), notifx.NewBus(), time.Minute, "https://pierre.test/oauth/callback")

	authorizeURL, err := oc.InitiateConnection(context.Background(), tenantID, userID, kernel.NewProviderID("synthetic"), "https://pierre.test/return")
	if err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	state := stateFromURL(t, authorizeURL)
	if _, err := oc.HandleCallback(context.Background(), state, "code-1"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	limiter, err := tools.NewRateLimiter(64)
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	registry := tools.NewRegistry(tools.Catalog())
	dispatcher := tools.NewDispatcher(registry, providerRegistry, oc, store.NewToolOverrideRepository(s), store.NewUsageCounterRepository(s), limiter, tools.NewGlobalDisableList(nil))

	auth := kernel.AuthContext{UserID: &userID, TenantID: tenantID, Plan: kernel.PlanFree, Scopes: []string{"tools:*"}}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		a := auth
		c.Locals("auth", &a)
		return c.Next()
	})
	NewHealthHandler(s, providerRegistry).RegisterRoutes(app)
	NewToolsHandler(registry, dispatcher).RegisterRoutes(app)

	return &testHarness{app: app, store: s, providers: providerRegistry, auth: auth}
}

func stateFromURL(t *testing.T, authorizeURL string) string {
	t.Helper()
	const marker = "state="
	for i := 0; i+len(marker) <= len(authorizeURL); i++ {
		if authorizeURL[i:i+len(marker)] == marker {
			return authorizeURL[i+len(marker):]
		}
	}
	t.Fatalf("no state in %q", authorizeURL)
	return ""
}

func TestHealthReportsOK(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
}

func TestListToolsReturnsCatalog(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestInvokeToolHappyPath(t *testing.T) {
	h := newHarness(t)
	body := `{"provider_id":"synthetic","args":{}}`
	req := httptest.NewRequest(http.MethodPost, "/tools/list_activities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		rbody, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, rbody)
	}
}

func TestInvokeUnknownToolReturnsEnvelope(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/tools/does_not_exist", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
