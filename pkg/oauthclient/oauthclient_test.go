package oauthclient

import (
	"context"
	"database/sql"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
)

// testKeyring builds a real crypto.Keyring against an in-memory sqlite
// store, and provisions a wrapped key for each tenant passed.
func testKeyring(t *testing.T, s *store.Store, tenants ...kernel.TenantID) *crypto.Keyring {
	t.Helper()
	tenantRepo := store.NewTenantRepository(s)
	masterKey := make([]byte, 32)
	for i := range masterKey {
		masterKey[i] = byte(i + 1)
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

func TestPendingConnectionRoundTripThroughMemoryStore(t *testing.T) {
	states := NewMemoryStateStore()
	pc := PendingConnection{
		State:        "abc123",
		TenantID:     kernel.NewTenantID("tenant-1"),
		UserID:       kernel.NewUserID("user-1"),
		ProviderID:   kernel.NewProviderID("synthetic"),
		CodeVerifier: "verifier",
		CreatedAt:    time.Now(),
	}
	if err := states.Put(context.Background(), pc, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := states.PopAndValidate(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("PopAndValidate: %v", err)
	}
	if got.UserID != pc.UserID || got.ProviderID != pc.ProviderID {
		t.Fatalf("got %+v, want %+v", got, pc)
	}

	if _, err := states.PopAndValidate(context.Background(), "abc123"); err == nil {
		t.Fatal("expected replay of a consumed state to fail")
	}
}

func TestPendingConnectionExpiresAfterTTL(t *testing.T) {
	states := NewMemoryStateStore()
	pc := PendingConnection{State: "expiring", TenantID: kernel.NewTenantID("t"), UserID: kernel.NewUserID("u"), ProviderID: kernel.NewProviderID("synthetic")}
	if err := states.Put(context.Background(), pc, -time.Second); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := states.PopAndValidate(context.Background(), "expiring"); err == nil {
		t.Fatal("expected expired state to be rejected")
	}
}

// capturingStateStore wraps MemoryStateStore and remembers the last
// state value handed to Put, so tests can drive HandleCallback without
// scraping it out of an authorize URL.
type capturingStateStore struct {
	*MemoryStateStore
	mu        sync.Mutex
	lastState string
}

func newCapturingStateStore() *capturingStateStore {
	return &capturingStateStore{MemoryStateStore: NewMemoryStateStore()}
}

func (s *capturingStateStore) Put(ctx context.Context, pc PendingConnection, ttl time.Duration) error {
	s.mu.Lock()
	s.lastState = pc.State
	s.mu.Unlock()
	return s.MemoryStateStore.Put(ctx, pc, ttl)
}

func (s *capturingStateStore) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState
}

func TestInitiateConnectionAndHandleCallbackHappyPath(t *testing.T) {
	s := openTestStore(t)
	tenantID := kernel.NewTenantID("tenant-1")
	userID := kernel.NewUserID("user-1")
	providerID := kernel.NewProviderID("synthetic")
	kr := testKeyring(t, s, tenantID)

	registry := providers.NewRegistry(providers.NewSyntheticProvider())
	creds := store.NewUpstreamCredentialRepository(s)
	states := newCapturingStateStore()
	client := New(registry, creds, kr, states, notifx.NewBus(), time.Minute, "https://pierre.test/oauth/callback")

	authorizeURL, err := client.InitiateConnection(context.Background(), tenantID, userID, providerID, "https://app.example/return")
	if err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	if authorizeURL == "" {
		t.Fatal("expected non-empty authorize URL")
	}

	pc, err := client.HandleCallback(context.Background(), states.State(), "auth-code-1")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if pc.UserID != userID || pc.TenantID != tenantID {
		t.Fatalf("unexpected pending connection: %+v", pc)
	}

	token, err := client.AccessToken(context.Background(), tenantID, userID, providerID)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty access token")
	}
}

func TestHandleCallbackRejectsReplayedState(t *testing.T) {
	s := openTestStore(t)
	tenantID := kernel.NewTenantID("tenant-1")
	userID := kernel.NewUserID("user-1")
	providerID := kernel.NewProviderID("synthetic")
	kr := testKeyring(t, s, tenantID)

	registry := providers.NewRegistry(providers.NewSyntheticProvider())
	creds := store.NewUpstreamCredentialRepository(s)
	states := newCapturingStateStore()
	client := New(registry, creds, kr, states, notifx.NewBus(), time.Minute, "https://pierre.test/oauth/callback")

	if _, err := client.InitiateConnection(context.Background(), tenantID, userID, providerID, ""); err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	state := states.State()

	if _, err := client.HandleCallback(context.Background(), state, "code-1"); err != nil {
		t.Fatalf("first HandleCallback: %v", err)
	}
	if _, err := client.HandleCallback(context.Background(), state, "code-1"); err == nil {
		t.Fatal("expected second callback with the same state to fail")
	}
}

func TestCrossTenantCredentialIsolation(t *testing.T) {
	s := openTestStore(t)
	tenantA := kernel.NewTenantID("tenant-a")
	tenantB := kernel.NewTenantID("tenant-b")
	userID := kernel.NewUserID("user-1")
	providerID := kernel.NewProviderID("synthetic")
	kr := testKeyring(t, s, tenantA, tenantB)

	registry := providers.NewRegistry(providers.NewSyntheticProvider())
	creds := store.NewUpstreamCredentialRepository(s)
	states := newCapturingStateStore()
	client := New(registry, creds, kr, states, notifx.NewBus(), time.Minute, "https://pierre.test/oauth/callback")

	if _, err := client.InitiateConnection(context.Background(), tenantA, userID, providerID, ""); err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	if _, err := client.HandleCallback(context.Background(), states.State(), "code-a"); err != nil {
		t.Fatalf("HandleCallback tenant A: %v", err)
	}

	if _, err := client.AccessToken(context.Background(), tenantB, userID, providerID); err == nil {
		t.Fatal("expected tenant B to have no credential for a connection made under tenant A")
	}
}

// countingProvider wraps the synthetic provider, counting Refresh calls
// and optionally failing every one of them with invalid_grant, so
// refresh-collapse and reauth-required behavior are directly testable.
type countingProvider struct {
	providers.Provider
	refreshCalls  int64
	failPermanent bool
}

func (p *countingProvider) Refresh(ctx context.Context, refreshToken string) (providers.TokenSet, error) {
	atomic.AddInt64(&p.refreshCalls, 1)
	if p.failPermanent {
		return providers.TokenSet{}, errx.New("invalid_grant", errx.TypeProviderAuthRequired)
	}
	return p.Provider.Refresh(ctx, refreshToken)
}

func pastExpiry() sql.NullTime {
	return sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}
}

func TestConcurrentAccessTokenCollapsesToOneRefresh(t *testing.T) {
	s := openTestStore(t)
	tenantID := kernel.NewTenantID("tenant-1")
	userID := kernel.NewUserID("user-1")
	providerID := kernel.NewProviderID("synthetic")
	kr := testKeyring(t, s, tenantID)

	counting := &countingProvider{Provider: providers.NewSyntheticProvider()}
	registry := providers.NewRegistry(counting)
	creds := store.NewUpstreamCredentialRepository(s)

	ctx := context.Background()
	accessCT, err := kr.Encrypt(ctx, tenantID, fieldAccessToken, []byte("stale-access"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	refreshCT, err := kr.Encrypt(ctx, tenantID, fieldRefreshToken, []byte("stale-refresh"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if err := creds.Upsert(ctx, store.UpstreamCredential{
		TenantID:       tenantID,
		UserID:         userID,
		ProviderID:     providerID,
		AccessTokenCT:  accessCT,
		RefreshTokenCT: refreshCT,
		Status:         store.CredentialActive,
		ExpiresAt:      pastExpiry(),
	}); err != nil {
		t.Fatalf("seed Upsert: %v", err)
	}

	client := New(registry, creds, kr, NewMemoryStateStore(), notifx.NewBus(), time.Minute, "https://pierre.test/oauth/callback")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.AccessToken(context.Background(), tenantID, userID, providerID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("AccessToken[%d]: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&counting.refreshCalls); got != 1 {
		t.Fatalf("expected exactly 1 upstream refresh call for %d concurrent callers, got %d", n, got)
	}
}

func TestInvalidGrantRevokesCredentialAndNotifies(t *testing.T) {
	s := openTestStore(t)
	tenantID := kernel.NewTenantID("tenant-1")
	userID := kernel.NewUserID("user-1")
	providerID := kernel.NewProviderID("synthetic")
	kr := testKeyring(t, s, tenantID)

	counting := &countingProvider{Provider: providers.NewSyntheticProvider(), failPermanent: true}
	registry := providers.NewRegistry(counting)
	creds := store.NewUpstreamCredentialRepository(s)

	bus := notifx.NewBus()
	sub, err := bus.Subscribe(tenantID, &userID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	client := New(registry, creds, kr, NewMemoryStateStore(), bus, time.Minute, "https://pierre.test/oauth/callback")

	ctx := context.Background()
	accessCT, _ := kr.Encrypt(ctx, tenantID, fieldAccessToken, []byte("stale-access"))
	refreshCT, _ := kr.Encrypt(ctx, tenantID, fieldRefreshToken, []byte("stale-refresh"))
	if err := creds.Upsert(ctx, store.UpstreamCredential{
		TenantID:       tenantID,
		UserID:         userID,
		ProviderID:     providerID,
		AccessTokenCT:  accessCT,
		RefreshTokenCT: refreshCT,
		Status:         store.CredentialActive,
		ExpiresAt:      pastExpiry(),
	}); err != nil {
		t.Fatalf("seed Upsert: %v", err)
	}

	if _, err := client.AccessToken(context.Background(), tenantID, userID, providerID); err == nil {
		t.Fatal("expected refresh failure to propagate")
	}

	if _, err := client.AccessToken(context.Background(), tenantID, userID, providerID); err == nil {
		t.Fatal("expected credential to stay revoked on a subsequent call")
	}

	select {
	case evt := <-sub.Events:
		if evt.Kind != notifx.KindProviderReauthRequired {
			t.Fatalf("got kind %q, want %q", evt.Kind, notifx.KindProviderReauthRequired)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a provider.reauth_required notification")
	}
}
