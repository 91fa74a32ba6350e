package store

import (
	"context"
	"testing"
	"time"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/kernel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.DatabaseConfig{
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

func seedTenant(t *testing.T, s *Store, tenantID kernel.TenantID) {
	t.Helper()
	err := NewTenantRepository(s).Create(context.Background(), Tenant{
		ID:         tenantID,
		Name:       "acme",
		Plan:       kernel.PlanFree,
		WrappedKey: []byte("wrapped"),
	})
	if err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
}

func TestAuthorizationCodeConsumeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := kernel.NewTenantID("t1")
	seedTenant(t, s, tenantID)

	codes := NewAuthorizationCodeRepository(s)
	err := codes.Create(ctx, AuthorizationCode{
		Code:        "abc123",
		ClientID:    kernel.NewClientID("client1"),
		TenantID:    tenantID,
		UserID:      kernel.NewUserID("user1"),
		RedirectURI: "https://app.example/callback",
		Scopes:      stringList{"tools:read"},
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	refresh := RefreshToken{
		TokenHash: "hash1",
		ClientID:  kernel.NewClientID("client1"),
		TenantID:  tenantID,
		UserID:    kernel.NewUserID("user1"),
		Scopes:    stringList{"tools:read"},
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}

	if _, err := codes.ConsumeAndIssueRefreshToken(ctx, "abc123", nil, refresh); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	if _, err := codes.ConsumeAndIssueRefreshToken(ctx, "abc123", nil, refresh); err == nil {
		t.Fatal("expected second consume of the same code to fail")
	}

	rt := NewRefreshTokenRepository(s)
	stored, err := rt.Get(ctx, "hash1")
	if err != nil {
		t.Fatalf("expected refresh token to exist after consume: %v", err)
	}
	// I6 / P2: replaying the code must revoke the token it already issued.
	if !stored.Revoked {
		t.Fatal("refresh token issued from a replayed code must be revoked")
	}
}

func TestAuthorizationCodeConsumeValidateRejectsBeforeConsuming(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := kernel.NewTenantID("t1")
	seedTenant(t, s, tenantID)

	codes := NewAuthorizationCodeRepository(s)
	if err := codes.Create(ctx, AuthorizationCode{
		Code:        "abc123",
		ClientID:    kernel.NewClientID("client1"),
		TenantID:    tenantID,
		UserID:      kernel.NewUserID("user1"),
		RedirectURI: "https://app.example/callback",
		Scopes:      stringList{"tools:read"},
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	refresh := RefreshToken{
		TokenHash: "hash1",
		ClientID:  kernel.NewClientID("client1"),
		TenantID:  tenantID,
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}
	rejectAll := func(AuthorizationCode) error { return storeErrors.New(ErrCodeConsumed) }

	if _, err := codes.ConsumeAndIssueRefreshToken(ctx, "abc123", rejectAll, refresh); err == nil {
		t.Fatal("expected validate failure to reject the exchange")
	}

	rt := NewRefreshTokenRepository(s)
	if _, err := rt.Get(ctx, "hash1"); err == nil {
		t.Fatal("a validate failure must not leave an orphaned refresh token row")
	}

	// The code itself must be untouched — a second, validating attempt
	// still succeeds.
	if _, err := codes.ConsumeAndIssueRefreshToken(ctx, "abc123", nil, refresh); err != nil {
		t.Fatalf("expected code to still be usable after a validate rejection: %v", err)
	}
}

func TestRefreshTokenRotateOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := kernel.NewTenantID("t1")
	seedTenant(t, s, tenantID)

	rt := NewRefreshTokenRepository(s)
	if _, err := rt.Rotate(ctx, "missing", RefreshToken{}); err == nil {
		t.Fatal("expected rotate of a missing token to fail")
	}

	codes := NewAuthorizationCodeRepository(s)
	if err := codes.Create(ctx, AuthorizationCode{
		Code:        "seed-code",
		ClientID:    kernel.NewClientID("client1"),
		TenantID:    tenantID,
		UserID:      kernel.NewUserID("user1"),
		RedirectURI: "https://app.example/callback",
		Scopes:      stringList{"tools:read"},
		ExpiresAt:   time.Now().Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("seed code: %v", err)
	}
	first := RefreshToken{
		TokenHash: "r1",
		ClientID:  kernel.NewClientID("client1"),
		TenantID:  tenantID,
		UserID:    kernel.NewUserID("user1"),
		Scopes:    stringList{"tools:read"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if _, err := codes.ConsumeAndIssueRefreshToken(ctx, "seed-code", nil, first); err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	second := RefreshToken{
		TokenHash: "r2",
		ClientID:  kernel.NewClientID("client1"),
		TenantID:  tenantID,
		UserID:    kernel.NewUserID("user1"),
		Scopes:    stringList{"tools:read"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if _, err := rt.Rotate(ctx, "r1", second); err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	third := second
	third.TokenHash = "r3"
	if _, err := rt.Rotate(ctx, "r1", third); err == nil {
		t.Fatal("expected rotating an already-rotated token to fail")
	}
}

func TestUpstreamCredentialUpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := kernel.NewTenantID("t1")
	seedTenant(t, s, tenantID)

	creds := NewUpstreamCredentialRepository(s)
	userID := kernel.NewUserID("user1")
	providerID := kernel.NewProviderID("strava")

	if err := creds.Upsert(ctx, UpstreamCredential{
		TenantID:      tenantID,
		UserID:        userID,
		ProviderID:    providerID,
		AccessTokenCT: []byte("ct-v1"),
		Scopes:        stringList{"activity:read"},
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	if err := creds.Upsert(ctx, UpstreamCredential{
		TenantID:      tenantID,
		UserID:        userID,
		ProviderID:    providerID,
		AccessTokenCT: []byte("ct-v2"),
		Scopes:        stringList{"activity:read", "profile:read"},
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := creds.Get(ctx, tenantID, userID, providerID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.AccessTokenCT) != "ct-v2" {
		t.Fatalf("got access token %q, want ct-v2", got.AccessTokenCT)
	}
	if len(got.Scopes) != 2 {
		t.Fatalf("got %d scopes, want 2", len(got.Scopes))
	}
}

func TestAuditLogKeysetPaginationNoDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tenantID := kernel.NewTenantID("t1")
	seedTenant(t, s, tenantID)

	log := NewAuditLogRepository(s)
	for i := 0; i < 5; i++ {
		if err := log.Record(ctx, AuditEntry{TenantID: tenantID, Action: "test.action"}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	seen := make(map[string]bool)
	cursor := kernel.Cursor{}
	for {
		page, err := log.List(ctx, tenantID, cursor, 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for _, e := range page.Items {
			if seen[e.ID] {
				t.Fatalf("duplicate entry %s across pages", e.ID)
			}
			seen[e.ID] = true
		}
		if !page.HasMore {
			break
		}
		cursor, err = kernel.DecodeCursor(page.NextCursor)
		if err != nil {
			t.Fatalf("DecodeCursor: %v", err)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("got %d entries across all pages, want 5", len(seen))
	}
}
