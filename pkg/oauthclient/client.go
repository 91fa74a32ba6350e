package oauthclient

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"sync"
	"time"

	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/jobx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
)

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"

	// refreshSkew is how far ahead of the stored expiry a token is
	// treated as already-expired, so a tool call never races a token
	// that is valid when read but expired by the time it's used.
	refreshSkew = 2 * time.Minute
)

// Client is the composition-root entry point for C5: it turns a
// provider registry, the encrypted credential store, and a pending-state
// store into the three operations spec.md 4.5 names — initiate, handle
// callback, refresh on demand.
type Client struct {
	registry    *providers.Registry
	creds       *store.UpstreamCredentialRepository
	keyring     *crypto.Keyring
	states      StateStore
	bus         *notifx.Bus
	stateTTL    time.Duration
	redirectURI string
	jobs        *jobx.Client

	refreshLocks sync.Map // key: tenantID+"/"+userID+"/"+providerID -> *sync.Mutex
}

// SetJobClient wires a jobx.Client so a transient refresh failure (an
// upstream 5xx or timeout, as opposed to invalid_grant) can schedule a
// background retry instead of only failing the in-flight tool call.
// Optional: a nil jobs client just skips scheduling the retry.
func (c *Client) SetJobClient(jobs *jobx.Client) {
	c.jobs = jobs
}

// New builds a Client. redirectURI is the single callback endpoint
// registered with every upstream provider (Pierre distinguishes
// providers and users by the opaque state, not by path), e.g.
// "https://pierre.example/oauth/callback".
func New(
	registry *providers.Registry,
	creds *store.UpstreamCredentialRepository,
	keyring *crypto.Keyring,
	states StateStore,
	bus *notifx.Bus,
	stateTTL time.Duration,
	redirectURI string,
) *Client {
	return &Client{
		registry:    registry,
		creds:       creds,
		keyring:     keyring,
		states:      states,
		bus:         bus,
		stateTTL:    stateTTL,
		redirectURI: redirectURI,
	}
}

// InitiateConnection generates the CSRF state (and PKCE verifier, when
// the provider requires it), stashes a PendingConnection, and returns
// the upstream authorize URL to redirect the user to.
func (c *Client) InitiateConnection(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID, returnURL string) (string, error) {
	provider, err := c.registry.Get(providerID)
	if err != nil {
		return "", err
	}

	state, err := randomToken(24)
	if err != nil {
		return "", err
	}

	var verifier, challenge string
	if provider.Descriptor().PKCERequired {
		verifier, err = randomToken(32)
		if err != nil {
			return "", err
		}
		sum := sha256.Sum256([]byte(verifier))
		challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	}

	pc := PendingConnection{
		State:        state,
		TenantID:     tenantID,
		UserID:       userID,
		ProviderID:   providerID,
		CodeVerifier: verifier,
		ReturnURL:    returnURL,
		CreatedAt:    time.Now(),
	}
	if err := c.states.Put(ctx, pc, c.stateTTL); err != nil {
		return "", err
	}

	return provider.AuthorizeURL(state, challenge), nil
}

// HandleCallback pops the pending connection for state (rejecting reuse),
// exchanges code for a TokenSet, and persists it encrypted under the
// tenant's key. The state alone identifies the user; the caller's
// session is not compared against it.
func (c *Client) HandleCallback(ctx context.Context, state, code string) (*PendingConnection, error) {
	pc, err := c.states.PopAndValidate(ctx, state)
	if err != nil {
		return nil, err
	}

	provider, err := c.registry.Get(pc.ProviderID)
	if err != nil {
		return nil, err
	}

	tokens, err := provider.ExchangeCode(ctx, code, pc.CodeVerifier, c.redirectURI)
	if err != nil {
		return nil, err
	}

	if err := c.persistTokens(ctx, pc.TenantID, pc.UserID, pc.ProviderID, tokens); err != nil {
		return nil, err
	}

	c.publish(pc.TenantID, &pc.UserID, notifx.KindProviderConnected, map[string]string{"provider_id": pc.ProviderID.String()})
	return pc, nil
}

// AccessToken returns a currently-valid upstream access token for
// (tenantID, userID, providerID), refreshing it first if it's within
// refreshSkew of expiry. Concurrent callers for the same (user,
// provider) pair collapse into a single upstream refresh call.
func (c *Client) AccessToken(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID) (string, error) {
	cred, err := c.creds.Get(ctx, tenantID, userID, providerID)
	if err != nil {
		return "", errx.Wrap(err, "load upstream credential", errx.TypeProviderAuthRequired)
	}
	if cred.Status != store.CredentialActive {
		return "", errx.New("upstream credential revoked; user must reconnect", errx.TypeProviderAuthRequired).
			WithDetail("provider_id", providerID.String())
	}
	if !c.needsRefresh(cred) {
		return c.decrypt(ctx, tenantID, cred.AccessTokenCT, fieldAccessToken)
	}

	lock := c.lockFor(tenantID, userID, providerID)
	lock.Lock()
	defer lock.Unlock()

	// Double-check: another goroutine may have refreshed while we
	// waited for the lock.
	cred, err = c.creds.Get(ctx, tenantID, userID, providerID)
	if err != nil {
		return "", errx.Wrap(err, "reload upstream credential", errx.TypeProviderAuthRequired)
	}
	if !c.needsRefresh(cred) {
		return c.decrypt(ctx, tenantID, cred.AccessTokenCT, fieldAccessToken)
	}

	return c.refreshLocked(ctx, tenantID, userID, providerID, cred)
}

func (c *Client) needsRefresh(cred *store.UpstreamCredential) bool {
	if !cred.ExpiresAt.Valid {
		return false
	}
	return time.Now().Add(refreshSkew).After(cred.ExpiresAt.Time)
}

func (c *Client) refreshLocked(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID, cred *store.UpstreamCredential) (string, error) {
	provider, err := c.registry.Get(providerID)
	if err != nil {
		return "", err
	}
	refreshToken, err := c.decrypt(ctx, tenantID, cred.RefreshTokenCT, fieldRefreshToken)
	if err != nil {
		return "", err
	}

	tokens, err := provider.Refresh(ctx, refreshToken)
	if err != nil {
		var asErr *errx.Error
		if errx.As(err, &asErr) && asErr.Type == errx.TypeProviderAuthRequired {
			if markErr := c.creds.MarkRevoked(ctx, tenantID, userID, providerID); markErr != nil {
				logx.WithError(markErr).Warn("oauthclient: failed to mark credential revoked after invalid_grant")
			}
			c.publish(tenantID, &userID, notifx.KindProviderReauthRequired, map[string]string{"provider_id": providerID.String()})
		} else if c.jobs != nil {
			if enqErr := EnqueueRefreshRetry(ctx, c.jobs, tenantID, userID, providerID); enqErr != nil {
				logx.WithError(enqErr).Warn("oauthclient: failed to schedule refresh retry")
			}
		}
		return "", err
	}

	if err := c.persistTokens(ctx, tenantID, userID, providerID, tokens); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

func (c *Client) persistTokens(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID, tokens providers.TokenSet) error {
	accessCT, err := c.keyring.Encrypt(ctx, tenantID, fieldAccessToken, []byte(tokens.AccessToken))
	if err != nil {
		return err
	}
	var refreshCT []byte
	if tokens.RefreshToken != "" {
		refreshCT, err = c.keyring.Encrypt(ctx, tenantID, fieldRefreshToken, []byte(tokens.RefreshToken))
		if err != nil {
			return err
		}
	}

	cred := store.UpstreamCredential{
		TenantID:       tenantID,
		UserID:         userID,
		ProviderID:     providerID,
		AccessTokenCT:  accessCT,
		RefreshTokenCT: refreshCT,
		Scopes:         tokens.Scopes,
		Status:         store.CredentialActive,
	}
	if !tokens.ExpiresAt.IsZero() {
		cred.ExpiresAt = sql.NullTime{Time: tokens.ExpiresAt, Valid: true}
	}
	return c.creds.Upsert(ctx, cred)
}

func (c *Client) decrypt(ctx context.Context, tenantID kernel.TenantID, ciphertext []byte, field string) (string, error) {
	plaintext, err := c.keyring.Decrypt(ctx, tenantID, field, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (c *Client) lockFor(tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID) *sync.Mutex {
	key := tenantID.String() + "/" + userID.String() + "/" + providerID.String()
	actual, _ := c.refreshLocks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func (c *Client) publish(tenantID kernel.TenantID, userID *kernel.UserID, kind notifx.Kind, payload interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(notifx.Event{
		Kind:      kind,
		TenantID:  tenantID,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errx.Wrap(err, "generate random token", errx.TypeInternal)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
