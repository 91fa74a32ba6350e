package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/oauthclient"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
	"github.com/pierre-platform/pierre/pkg/tools"
)

func newTestHandler(t *testing.T) (*Handler, kernel.AuthContext) {
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

	tenantID := kernel.NewTenantID("mcp-tenant-1")
	userID := kernel.NewUserID("mcp-user-1")

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
		ID: tenantID, Name: "mcp-tenant", Plan: kernel.PlanFree, WrappedKey: wrapped,
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
	return NewHandler(registry, dispatcher), auth
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

func TestHandleInitializeAndPing(t *testing.T) {
	h, auth := newTestHandler(t)

	resp := h.Handle(context.Background(), auth, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"})
	if resp.Error != nil {
		t.Fatalf("initialize returned error: %v", resp.Error)
	}

	resp = h.Handle(context.Background(), auth, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "ping"})
	if resp.Error != nil {
		t.Fatalf("ping returned error: %v", resp.Error)
	}
	if string(resp.ID) != "2" {
		t.Fatalf("response id not echoed byte-equal: got %s", resp.ID)
	}
}

func TestHandleToolsListAdvertisesCatalog(t *testing.T) {
	h, auth := newTestHandler(t)
	resp := h.Handle(context.Background(), auth, Request{JSONRPC: "2.0", ID: json.RawMessage(`3`), Method: "tools/list"})
	if resp.Error != nil {
		t.Fatalf("tools/list returned error: %v", resp.Error)
	}
	var result struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Tools) != len(tools.Catalog()) {
		t.Fatalf("expected %d tools, got %d", len(tools.Catalog()), len(result.Tools))
	}
}

func TestHandleToolsCallHappyPath(t *testing.T) {
	h, auth := newTestHandler(t)
	params, _ := json.Marshal(map[string]any{"name": "list_activities", "arguments": map[string]any{}, "provider_id": "synthetic"})
	resp := h.Handle(context.Background(), auth, Request{JSONRPC: "2.0", ID: json.RawMessage(`4`), Method: "tools/call", Params: params})
	if resp.Error != nil {
		t.Fatalf("tools/call returned error: %v", resp.Error)
	}
}

func TestHandleToolsCallUnknownToolReturnsApplicationError(t *testing.T) {
	h, auth := newTestHandler(t)
	params, _ := json.Marshal(map[string]any{"name": "does_not_exist", "arguments": map[string]any{}})
	resp := h.Handle(context.Background(), auth, Request{JSONRPC: "2.0", ID: json.RawMessage(`5`), Method: "tools/call", Params: params})
	if resp.Error == nil {
		t.Fatal("expected an error response")
	}
	if resp.Error.Code != CodeToolNotFound {
		t.Fatalf("expected CodeToolNotFound, got %d", resp.Error.Code)
	}
}

func TestHandleUnknownMethodReturnsMethodNotFound(t *testing.T) {
	h, auth := newTestHandler(t)
	resp := h.Handle(context.Background(), auth, Request{JSONRPC: "2.0", ID: json.RawMessage(`6`), Method: "nonexistent/method"})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected CodeMethodNotFound, got %+v", resp.Error)
	}
}

func TestNotificationCarriesNoID(t *testing.T) {
	req := Request{JSONRPC: "2.0", Method: "ping"}
	if !req.IsNotification() {
		t.Fatal("request without id should be a notification")
	}
}
