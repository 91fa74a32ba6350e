package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/oauthclient"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
)

func openTestStore(t *testing.T) *store.Store {
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
	return s
}

func testKeyring(t *testing.T, s *store.Store, tenants ...kernel.TenantID) *crypto.Keyring {
	t.Helper()
	tenantRepo := store.NewTenantRepository(s)
	masterKey := make([]byte, 32)
	for i := range masterKey {
		masterKey[i] = byte(i + 7)
	}
	kr, err := crypto.NewKeyring(base64.StdEncoding.EncodeToString(masterKey), tenantRepo)
	if err != nil {
		t.Fatalf("NewKeyring: %v", err)
	}
	for _, tenantID := range tenants {
		raw, err := crypto.GenerateTenantKey()
		if err != nil {
			t.Fatalf("GenerateTenantKey: %v", err)
		}
		wrapped, err := kr.WrapTenantKey(tenantID, raw)
		if err != nil {
			t.Fatalf("WrapTenantKey: %v", err)
		}
		if err := tenantRepo.Create(context.Background(), store.Tenant{
			ID:         tenantID,
			Name:       tenantID.String(),
			Plan:       kernel.PlanFree,
			WrappedKey: wrapped,
		}); err != nil {
			t.Fatalf("seed tenant %s: %v", tenantID, err)
		}
	}
	return kr
}

// newTestDispatcher wires a Dispatcher against a real in-memory store
// and the synthetic provider, connecting userID to providerID so
// provider-backed tools have a token to resolve.
func newTestDispatcher(t *testing.T, tenantID kernel.TenantID, userID kernel.UserID) *Dispatcher {
	t.Helper()
	s := openTestStore(t)
	kr := testKeyring(t, s, tenantID)
	creds := store.NewUpstreamCredentialRepository(s)
	overrides := store.NewToolOverrideRepository(s)
	usage := store.NewUsageCounterRepository(s)

	providerRegistry := providers.NewRegistry(providers.NewSyntheticProvider())
	oc := oauthclient.New(providerRegistry, creds, kr, oauthclient.NewMemoryStateStore(), notifx.NewBus(), time.Minute, "https://pierre.test/oauth/callback")

	state := mustInitiate(t, oc, tenantID, userID)
	if _, err := oc.HandleCallback(context.Background(), state, "auth-code-1"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	limiter, err := NewRateLimiter(64)
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	registry := NewRegistry(Catalog())
	global := NewGlobalDisableList(nil)
	return NewDispatcher(registry, providerRegistry, oc, overrides, usage, limiter, global)
}

// mustInitiate starts a connect flow and extracts its state from the
// returned authorize URL (synthetic's AuthorizeURL embeds it verbatim,
// since there is no real upstream to redirect through).
func mustInitiate(t *testing.T, oc *oauthclient.Client, tenantID kernel.TenantID, userID kernel.UserID) string {
	t.Helper()
	authorizeURL, err := oc.InitiateConnection(context.Background(), tenantID, userID, kernel.NewProviderID("synthetic"), "https://pierre.test/return")
	if err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	const marker = "state="
	for i := 0; i+len(marker) <= len(authorizeURL); i++ {
		if authorizeURL[i:i+len(marker)] == marker {
			return authorizeURL[i+len(marker):]
		}
	}
	t.Fatalf("authorize URL %q has no state parameter", authorizeURL)
	return ""
}

func authContext(tenantID kernel.TenantID, userID kernel.UserID, plan kernel.PlanTier, scopes ...string) kernel.AuthContext {
	u := userID
	return kernel.AuthContext{
		UserID:   &u,
		TenantID: tenantID,
		Plan:     plan,
		Scopes:   scopes,
	}
}

func TestDispatchHappyPathListActivities(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-1")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	res, err := d.Dispatch(context.Background(), Call{
		Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
		ToolName:   kernel.NewToolName("list_activities"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Tool != kernel.NewToolName("list_activities") {
		t.Fatalf("unexpected tool in result: %s", res.Tool)
	}
	if len(res.Data) == 0 {
		t.Fatal("expected non-empty data")
	}
}

func TestDispatchUnknownToolReturnsNotFound(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-2")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	_, err := d.Dispatch(context.Background(), Call{
		Auth:     authContext(tenantID, userID, kernel.PlanFree),
		ToolName: kernel.NewToolName("does_not_exist"),
		Args:     json.RawMessage(`{}`),
	})
	var asErr *errx.Error
	if !errx.As(err, &asErr) || asErr.Type != errx.TypeNotFound {
		t.Fatalf("expected TypeNotFound, got %v", err)
	}
}

func TestDispatchPlanRestrictionBlocksHealthToolsOnFreePlan(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-3")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	_, err := d.Dispatch(context.Background(), Call{
		Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
		ToolName:   kernel.NewToolName("get_heart_rate"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{}`),
	})
	var asErr *errx.Error
	if !errx.As(err, &asErr) {
		t.Fatalf("expected *errx.Error, got %v", err)
	}
	if asErr.Details["source"] != string(SourcePlanRestriction) {
		t.Fatalf("expected plan_restriction source, got %v", asErr.Details["source"])
	}
}

func TestDispatchEnterprisePlanUnlocksHealthTools(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-4")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	_, err := d.Dispatch(context.Background(), Call{
		Auth:       authContext(tenantID, userID, kernel.PlanEnterprise, "tools:*"),
		ToolName:   kernel.NewToolName("get_heart_rate"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}

func TestDispatchTenantOverrideDisablesDefaultAllowedTool(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-5")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	if err := d.overrides.Set(context.Background(), tenantID, kernel.NewToolName("list_activities"), false); err != nil {
		t.Fatalf("Set override: %v", err)
	}

	_, err := d.Dispatch(context.Background(), Call{
		Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
		ToolName:   kernel.NewToolName("list_activities"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{}`),
	})
	var asErr *errx.Error
	if !errx.As(err, &asErr) || asErr.Details["source"] != string(SourceTenantOverride) {
		t.Fatalf("expected tenant_override source, got %v", err)
	}
}

func TestDispatchGlobalDisableOverridesTenantOverride(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-6")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)
	d.global = NewGlobalDisableList(map[kernel.ToolName]string{
		kernel.NewToolName("list_activities"): "maintenance",
	})

	if err := d.overrides.Set(context.Background(), tenantID, kernel.NewToolName("list_activities"), true); err != nil {
		t.Fatalf("Set override: %v", err)
	}

	_, err := d.Dispatch(context.Background(), Call{
		Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
		ToolName:   kernel.NewToolName("list_activities"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{}`),
	})
	var asErr *errx.Error
	if !errx.As(err, &asErr) || asErr.Details["source"] != string(SourceGlobalDisabled) {
		t.Fatalf("expected global_disabled source, got %v", err)
	}
}

func TestDispatchInvalidArgumentsRejected(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-7")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	_, err := d.Dispatch(context.Background(), Call{
		Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
		ToolName:   kernel.NewToolName("list_activities"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{"since": 123}`),
	})
	var asErr *errx.Error
	if !errx.As(err, &asErr) || asErr.Type != errx.TypeValidation {
		t.Fatalf("expected TypeValidation, got %v", err)
	}
}

func TestDispatchRateLimitExhaustion(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-8")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	call := Call{
		Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
		ToolName:   kernel.NewToolName("list_activities"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{}`),
	}

	var rateLimited bool
	for i := 0; i < 20; i++ {
		_, err := d.Dispatch(context.Background(), call)
		if err == nil {
			continue
		}
		var asErr *errx.Error
		if errx.As(err, &asErr) && asErr.Type == errx.TypeRateLimited {
			rateLimited = true
			break
		}
		t.Fatalf("unexpected error: %v", err)
	}
	if !rateLimited {
		t.Fatal("expected the free plan's 10-token burst to exhaust within 20 calls")
	}
}

func TestDispatchTenantRateLimitIsolation(t *testing.T) {
	tenantA := kernel.NewTenantID("tenant-dispatch-9a")
	tenantB := kernel.NewTenantID("tenant-dispatch-9b")
	userID := kernel.NewUserID("user-1")

	dA := newTestDispatcher(t, tenantA, userID)
	// tenant B gets its own seeded tenant and connected credential, but
	// both dispatchers share the SAME limiter.
	dB := newTestDispatcher(t, tenantB, userID)
	dB.limiter = dA.limiter

	callFor := func(tenantID kernel.TenantID) Call {
		return Call{
			Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
			ToolName:   kernel.NewToolName("list_activities"),
			ProviderID: kernel.NewProviderID("synthetic"),
			Args:       json.RawMessage(`{}`),
		}
	}

	for i := 0; i < 10; i++ {
		if _, err := dA.Dispatch(context.Background(), callFor(tenantA)); err != nil {
			t.Fatalf("tenant A call %d: %v", i, err)
		}
	}
	// tenant A's burst is now exhausted; tenant B must be unaffected.
	if _, err := dB.Dispatch(context.Background(), callFor(tenantB)); err != nil {
		t.Fatalf("tenant B call should not be rate limited by tenant A's usage: %v", err)
	}
}

func TestDispatchMissingScopeDenied(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-scope")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	_, err := d.Dispatch(context.Background(), Call{
		Auth:       authContext(tenantID, userID, kernel.PlanFree, "tools:profile:read"),
		ToolName:   kernel.NewToolName("list_activities"),
		ProviderID: kernel.NewProviderID("synthetic"),
		Args:       json.RawMessage(`{}`),
	})
	var asErr *errx.Error
	if !errx.As(err, &asErr) || asErr.Code != ErrScopeMissing.Code {
		t.Fatalf("expected SCOPE_MISSING, got %v", err)
	}
}

func TestDispatchDefaultDisabledToolNeedsTenantOverride(t *testing.T) {
	tenantID := kernel.NewTenantID("tenant-dispatch-default-off")
	userID := kernel.NewUserID("user-1")
	d := newTestDispatcher(t, tenantID, userID)

	disabled := Descriptor{
		Name:           kernel.NewToolName("experimental_tool"),
		Description:    "not yet ready for general availability",
		InputSchema:    emptySchema,
		Category:       CategoryActivities,
		RequiredScopes: nil,
		DefaultEnabled: false,
		Handler:        func(context.Context, Invocation) (json.RawMessage, error) { return json.RawMessage(`{}`), nil },
	}
	d.registry = NewRegistry(append(d.registry.List(), disabled))

	call := Call{
		Auth:     authContext(tenantID, userID, kernel.PlanFree, "tools:*"),
		ToolName: disabled.Name,
		Args:     json.RawMessage(`{}`),
	}

	if _, err := d.Dispatch(context.Background(), call); err == nil {
		t.Fatal("expected a default-disabled tool to be refused without a tenant override")
	}

	if err := d.overrides.Set(context.Background(), tenantID, disabled.Name, true); err != nil {
		t.Fatalf("Set override: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), call); err != nil {
		t.Fatalf("expected tenant override to enable the tool: %v", err)
	}
}

func TestSchemaValidateRequiredAndTypes(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"name"},
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
	}

	if problems := Validate(schema, json.RawMessage(`{"name":"x","count":3}`)); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
	if problems := Validate(schema, json.RawMessage(`{"count":3}`)); len(problems) != 1 {
		t.Fatalf("expected missing-required problem, got %v", problems)
	}
	if problems := Validate(schema, json.RawMessage(`{"name":"x","count":3.5}`)); len(problems) != 1 {
		t.Fatalf("expected type-mismatch problem, got %v", problems)
	}
}
