package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// OAuthClient is a downstream application registered per RFC 7591. A
// public client (is_confidential=false) has no secret and must use
// PKCE on the authorization_code grant.
type OAuthClient struct {
	ID               kernel.ClientID `db:"id"`
	TenantID         kernel.TenantID `db:"tenant_id"`
	ClientSecretHash sql.NullString  `db:"client_secret_hash"`
	ClientName       string          `db:"client_name"`
	RedirectURIs     stringList      `db:"redirect_uris"`
	GrantTypes       stringList      `db:"grant_types"`
	Scopes           stringList      `db:"scopes"`
	IsConfidential   bool            `db:"is_confidential"`
	AllowPlainPKCE   bool            `db:"allow_plain_pkce"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

type OAuthClientRepository struct {
	store *Store
}

func NewOAuthClientRepository(s *Store) *OAuthClientRepository {
	return &OAuthClientRepository{store: s}
}

func (r *OAuthClientRepository) Create(ctx context.Context, c OAuthClient) error {
	now := nowUTC()
	c.CreatedAt, c.UpdatedAt = now, now
	query := r.store.Rebind(`
		INSERT INTO oauth2_clients (
			id, tenant_id, client_secret_hash, client_name, redirect_uris,
			grant_types, scopes, is_confidential, allow_plain_pkce, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query,
		c.ID.String(), c.TenantID.String(), c.ClientSecretHash, c.ClientName,
		c.RedirectURIs, c.GrantTypes, c.Scopes, c.IsConfidential, c.AllowPlainPKCE, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storeErrors.New(ErrAlreadyExists).WithDetail("client_id", c.ID.String())
		}
		return wrapBackendErr(err, "oauth_client.create")
	}
	return nil
}

func (r *OAuthClientRepository) Get(ctx context.Context, id kernel.ClientID) (*OAuthClient, error) {
	var c OAuthClient
	query := r.store.Rebind(`SELECT * FROM oauth2_clients WHERE id = ?`)
	if err := r.store.DB.GetContext(ctx, &c, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrNotFound).WithDetail("client_id", id.String())
		}
		return nil, wrapBackendErr(err, "oauth_client.get")
	}
	return &c, nil
}

func (r *OAuthClientRepository) ListByTenant(ctx context.Context, tenantID kernel.TenantID) ([]OAuthClient, error) {
	var clients []OAuthClient
	query := r.store.Rebind(`SELECT * FROM oauth2_clients WHERE tenant_id = ? ORDER BY created_at, id`)
	if err := r.store.DB.SelectContext(ctx, &clients, query, tenantID.String()); err != nil {
		return nil, wrapBackendErr(err, "oauth_client.list_by_tenant")
	}
	return clients, nil
}

func (r *OAuthClientRepository) Delete(ctx context.Context, id kernel.ClientID) error {
	query := r.store.Rebind(`DELETE FROM oauth2_clients WHERE id = ?`)
	res, err := r.store.DB.ExecContext(ctx, query, id.String())
	if err != nil {
		return wrapBackendErr(err, "oauth_client.delete")
	}
	return checkRowsAffected(res, id.String())
}
