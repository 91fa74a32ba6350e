package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/kernel"
)

// RefreshToken is the server-side record behind an opaque refresh
// token. TokenHash is SHA-256 of the token value; the raw value is
// never persisted. IssuingCode is set only on the refresh token minted
// directly from an authorization_code exchange — it is how I6's reuse
// detection finds "any tokens already issued from the code" to revoke;
// tokens produced by subsequent Rotate calls leave it unset.
type RefreshToken struct {
	TokenHash   string          `db:"token_hash"`
	ClientID    kernel.ClientID `db:"client_id"`
	TenantID    kernel.TenantID `db:"tenant_id"`
	UserID      kernel.UserID   `db:"user_id"`
	Scopes      stringList      `db:"scopes"`
	Revoked     bool            `db:"revoked"`
	ExpiresAt   time.Time       `db:"expires_at"`
	CreatedAt   time.Time       `db:"created_at"`
	IssuingCode sql.NullString  `db:"issuing_code"`
}

type RefreshTokenRepository struct {
	store *Store
}

func NewRefreshTokenRepository(s *Store) *RefreshTokenRepository {
	return &RefreshTokenRepository{store: s}
}

func (r *RefreshTokenRepository) Get(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var t RefreshToken
	query := r.store.Rebind(`SELECT * FROM oauth2_refresh_tokens WHERE token_hash = ?`)
	if err := r.store.DB.GetContext(ctx, &t, query, tokenHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrNotFound).WithDetail("token_hash", tokenHash)
		}
		return nil, wrapBackendErr(err, "refresh_token.get")
	}
	return &t, nil
}

// Revoke marks a single refresh token revoked, independent of rotation
// (used by POST /oauth2/revoke).
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	query := r.store.Rebind(`UPDATE oauth2_refresh_tokens SET revoked = ? WHERE token_hash = ?`)
	_, err := r.store.DB.ExecContext(ctx, query, true, tokenHash)
	if err != nil {
		return wrapBackendErr(err, "refresh_token.revoke")
	}
	return nil
}

// Rotate atomically revokes oldTokenHash and inserts newToken in one
// transaction, failing the whole operation if the old token is already
// revoked, expired, or absent — the same replay protection RFC 6749
// expects from refresh-token rotation.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldTokenHash string, newToken RefreshToken) (*RefreshToken, error) {
	tx, err := r.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapBackendErr(err, "refresh_token.rotate.begin")
	}
	defer tx.Rollback()

	var old RefreshToken
	selectQuery := r.store.Rebind(`SELECT * FROM oauth2_refresh_tokens WHERE token_hash = ?`)
	if r.store.Backend == config.BackendPostgres {
		selectQuery += " FOR UPDATE"
	}
	if err := tx.GetContext(ctx, &old, selectQuery, oldTokenHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrTokenRevoked).WithDetail("token_hash", oldTokenHash)
		}
		return nil, wrapBackendErr(err, "refresh_token.rotate.select")
	}
	if old.Revoked || nowUTC().After(old.ExpiresAt) {
		return nil, storeErrors.New(ErrTokenRevoked).WithDetail("token_hash", oldTokenHash)
	}

	revokeQuery := r.store.Rebind(`UPDATE oauth2_refresh_tokens SET revoked = ? WHERE token_hash = ? AND revoked = ?`)
	res, err := tx.ExecContext(ctx, revokeQuery, true, oldTokenHash, false)
	if err != nil {
		return nil, wrapBackendErr(err, "refresh_token.rotate.revoke")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapBackendErr(err, "refresh_token.rotate.rows_affected")
	}
	if n == 0 {
		return nil, storeErrors.New(ErrTokenRevoked).WithDetail("token_hash", oldTokenHash)
	}

	// The rotated token inherits client/tenant/user/scopes from the
	// token it replaces; only the new value and its expiry come from
	// the caller.
	newToken.ClientID = old.ClientID
	newToken.TenantID = old.TenantID
	newToken.UserID = old.UserID
	newToken.Scopes = old.Scopes
	newToken.CreatedAt = nowUTC()
	insertQuery := r.store.Rebind(`
		INSERT INTO oauth2_refresh_tokens (
			token_hash, client_id, tenant_id, user_id, scopes, revoked, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertQuery,
		newToken.TokenHash, newToken.ClientID.String(), newToken.TenantID.String(), newToken.UserID.String(),
		newToken.Scopes, false, newToken.ExpiresAt, newToken.CreatedAt); err != nil {
		return nil, wrapBackendErr(err, "refresh_token.rotate.insert")
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapBackendErr(err, "refresh_token.rotate.commit")
	}
	return &newToken, nil
}
