package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// CredentialStatus tracks whether an upstream credential is usable.
type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialRevoked CredentialStatus = "revoked"
)

// UpstreamCredential is the encrypted record of one user's connection
// to one upstream provider. AccessTokenCT/RefreshTokenCT are
// crypto.Keyring ciphertexts (nonce-prefixed); plaintext is never
// persisted here.
type UpstreamCredential struct {
	ID             string             `db:"id"`
	TenantID       kernel.TenantID    `db:"tenant_id"`
	UserID         kernel.UserID      `db:"user_id"`
	ProviderID     kernel.ProviderID  `db:"provider_id"`
	AccessTokenCT  []byte             `db:"access_token_ct"`
	RefreshTokenCT []byte             `db:"refresh_token_ct"`
	Scopes         stringList         `db:"scopes"`
	Status         CredentialStatus   `db:"status"`
	ExpiresAt      sql.NullTime       `db:"expires_at"`
	CreatedAt      time.Time          `db:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at"`
}

type UpstreamCredentialRepository struct {
	store *Store
}

func NewUpstreamCredentialRepository(s *Store) *UpstreamCredentialRepository {
	return &UpstreamCredentialRepository{store: s}
}

// Upsert atomically replaces the (ciphertext, expiry, scopes) tuple for
// a (tenant, user, provider), used both on first connect and on every
// token refresh.
func (r *UpstreamCredentialRepository) Upsert(ctx context.Context, c UpstreamCredential) error {
	now := nowUTC()
	if c.ID == "" {
		c.ID = NewID()
	}
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = CredentialActive
	}

	query := r.store.Rebind(`
		INSERT INTO upstream_credentials (
			id, tenant_id, user_id, provider_id, access_token_ct, refresh_token_ct,
			scopes, status, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id, provider_id) DO UPDATE SET
			access_token_ct = excluded.access_token_ct,
			refresh_token_ct = excluded.refresh_token_ct,
			scopes = excluded.scopes,
			status = excluded.status,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`)
	_, err := r.store.DB.ExecContext(ctx, query,
		c.ID, c.TenantID.String(), c.UserID.String(), c.ProviderID.String(),
		c.AccessTokenCT, c.RefreshTokenCT, c.Scopes, string(c.Status), c.ExpiresAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return wrapBackendErr(err, "upstream_credential.upsert")
	}
	return nil
}

func (r *UpstreamCredentialRepository) Get(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID) (*UpstreamCredential, error) {
	var c UpstreamCredential
	query := r.store.Rebind(`SELECT * FROM upstream_credentials WHERE tenant_id = ? AND user_id = ? AND provider_id = ?`)
	if err := r.store.DB.GetContext(ctx, &c, query, tenantID.String(), userID.String(), providerID.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrNotFound).
				WithDetail("user_id", userID.String()).
				WithDetail("provider_id", providerID.String())
		}
		return nil, wrapBackendErr(err, "upstream_credential.get")
	}
	return &c, nil
}

func (r *UpstreamCredentialRepository) ListByUser(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID) ([]UpstreamCredential, error) {
	var creds []UpstreamCredential
	query := r.store.Rebind(`SELECT * FROM upstream_credentials WHERE tenant_id = ? AND user_id = ? ORDER BY created_at, id`)
	if err := r.store.DB.SelectContext(ctx, &creds, query, tenantID.String(), userID.String()); err != nil {
		return nil, wrapBackendErr(err, "upstream_credential.list_by_user")
	}
	return creds, nil
}

// ListByTenant returns every credential row under tenantID regardless
// of owning user — used by key rotation to re-wrap every ciphertext
// under a tenant's new symmetric key in one pass.
func (r *UpstreamCredentialRepository) ListByTenant(ctx context.Context, tenantID kernel.TenantID) ([]UpstreamCredential, error) {
	var creds []UpstreamCredential
	query := r.store.Rebind(`SELECT * FROM upstream_credentials WHERE tenant_id = ? ORDER BY created_at, id`)
	if err := r.store.DB.SelectContext(ctx, &creds, query, tenantID.String()); err != nil {
		return nil, wrapBackendErr(err, "upstream_credential.list_by_tenant")
	}
	return creds, nil
}

// MarkRevoked flags a credential revoked (e.g. after an upstream
// invalid_grant response), prompting the user to reconnect.
func (r *UpstreamCredentialRepository) MarkRevoked(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID) error {
	query := r.store.Rebind(`
		UPDATE upstream_credentials SET status = ?, updated_at = ?
		WHERE tenant_id = ? AND user_id = ? AND provider_id = ?`)
	res, err := r.store.DB.ExecContext(ctx, query, string(CredentialRevoked), nowUTC(),
		tenantID.String(), userID.String(), providerID.String())
	if err != nil {
		return wrapBackendErr(err, "upstream_credential.mark_revoked")
	}
	return checkRowsAffected(res, providerID.String())
}

func (r *UpstreamCredentialRepository) Delete(ctx context.Context, tenantID kernel.TenantID, userID kernel.UserID, providerID kernel.ProviderID) error {
	query := r.store.Rebind(`DELETE FROM upstream_credentials WHERE tenant_id = ? AND user_id = ? AND provider_id = ?`)
	res, err := r.store.DB.ExecContext(ctx, query, tenantID.String(), userID.String(), providerID.String())
	if err != nil {
		return wrapBackendErr(err, "upstream_credential.delete")
	}
	return checkRowsAffected(res, providerID.String())
}
