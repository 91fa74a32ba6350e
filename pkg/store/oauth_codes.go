package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/kernel"
)

// AuthorizationCode is a one-time, short-lived binding created at
// /oauth2/authorize and marked Consumed at /oauth2/token; the row is
// kept, not deleted.
type AuthorizationCode struct {
	Code                string          `db:"code"`
	ClientID            kernel.ClientID `db:"client_id"`
	TenantID            kernel.TenantID `db:"tenant_id"`
	UserID              kernel.UserID   `db:"user_id"`
	RedirectURI         string          `db:"redirect_uri"`
	Scopes              stringList      `db:"scopes"`
	CodeChallenge       sql.NullString  `db:"code_challenge"`
	CodeChallengeMethod sql.NullString  `db:"code_challenge_method"`
	Consumed            bool            `db:"consumed"`
	ExpiresAt           time.Time       `db:"expires_at"`
	CreatedAt           time.Time       `db:"created_at"`
}

type AuthorizationCodeRepository struct {
	store *Store
}

func NewAuthorizationCodeRepository(s *Store) *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{store: s}
}

func (r *AuthorizationCodeRepository) Create(ctx context.Context, c AuthorizationCode) error {
	c.CreatedAt = nowUTC()
	query := r.store.Rebind(`
		INSERT INTO oauth2_authorization_codes (
			code, client_id, tenant_id, user_id, redirect_uri, scopes,
			code_challenge, code_challenge_method, consumed, expires_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query,
		c.Code, c.ClientID.String(), c.TenantID.String(), c.UserID.String(), c.RedirectURI, c.Scopes,
		c.CodeChallenge, c.CodeChallengeMethod, false, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storeErrors.New(ErrAlreadyExists).WithDetail("code", c.Code)
		}
		return wrapBackendErr(err, "auth_code.create")
	}
	return nil
}

// ConsumeAndIssueRefreshToken performs the code-exchange step of
// /oauth2/token atomically: it locks the authorization code row, gives
// validate a chance to reject the exchange (redirect_uri/client/PKCE)
// while the lock is still held, and only then marks the code consumed
// and inserts the paired refresh token — all inside one transaction.
// A validate failure rolls the whole transaction back, so the code is
// left exactly as it was and no refresh token row is ever created for
// a request that doesn't fully succeed.
//
// I6 / P2: the code row survives consumption — consumed is set true,
// the row is never deleted — so a second presentation is detected
// rather than merely absent. On detecting that the code was already
// consumed (by this call's own SELECT or by losing a race on the
// UPDATE below), every still-live refresh token minted directly from
// it is revoked in the same transaction before ErrCodeConsumed is
// returned, matching "a second presentation ... revokes any tokens
// already issued from the code."
func (r *AuthorizationCodeRepository) ConsumeAndIssueRefreshToken(
	ctx context.Context,
	code string,
	validate func(AuthorizationCode) error,
	refresh RefreshToken,
) (*AuthorizationCode, error) {
	tx, err := r.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapBackendErr(err, "auth_code.consume.begin")
	}
	defer tx.Rollback()

	var row AuthorizationCode
	selectQuery := r.store.Rebind(`SELECT * FROM oauth2_authorization_codes WHERE code = ?`)
	if r.store.Backend == config.BackendPostgres {
		selectQuery += " FOR UPDATE"
	}
	if err := tx.GetContext(ctx, &row, selectQuery, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrCodeConsumed).WithDetail("code", code)
		}
		return nil, wrapBackendErr(err, "auth_code.consume.select")
	}

	if row.Consumed {
		return nil, r.revokeIssuedFromAndFail(ctx, tx, code)
	}
	if nowUTC().After(row.ExpiresAt) {
		return nil, storeErrors.New(ErrCodeConsumed).WithDetail("code", code)
	}

	if validate != nil {
		if err := validate(row); err != nil {
			return nil, err
		}
	}

	consumeQuery := r.store.Rebind(`UPDATE oauth2_authorization_codes SET consumed = ? WHERE code = ? AND consumed = ?`)
	res, err := tx.ExecContext(ctx, consumeQuery, true, code, false)
	if err != nil {
		return nil, wrapBackendErr(err, "auth_code.consume.update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapBackendErr(err, "auth_code.consume.rows_affected")
	}
	if n == 0 {
		// Lost a race with a concurrent exchange between our SELECT and
		// this UPDATE — identical to the already-consumed case above.
		return nil, r.revokeIssuedFromAndFail(ctx, tx, code)
	}

	// The refresh token inherits client/tenant/user/scopes from the
	// authorization code itself, not from the caller — only the token
	// value and its own expiry are the caller's to set.
	refresh.ClientID = row.ClientID
	refresh.TenantID = row.TenantID
	refresh.UserID = row.UserID
	refresh.Scopes = row.Scopes
	refresh.IssuingCode = sql.NullString{String: code, Valid: true}
	refresh.CreatedAt = nowUTC()
	insertQuery := r.store.Rebind(`
		INSERT INTO oauth2_refresh_tokens (
			token_hash, client_id, tenant_id, user_id, scopes, revoked, expires_at, created_at, issuing_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertQuery,
		refresh.TokenHash, refresh.ClientID.String(), refresh.TenantID.String(), refresh.UserID.String(),
		refresh.Scopes, false, refresh.ExpiresAt, refresh.CreatedAt, refresh.IssuingCode); err != nil {
		return nil, wrapBackendErr(err, "auth_code.consume.insert_refresh")
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapBackendErr(err, "auth_code.consume.commit")
	}
	return &row, nil
}

// revokeIssuedFromAndFail revokes every still-live refresh token issued
// directly from code and commits that revocation before returning
// ErrCodeConsumed — reuse detection must not be undone by the deferred
// rollback once it has taken effect.
func (r *AuthorizationCodeRepository) revokeIssuedFromAndFail(ctx context.Context, tx *sqlx.Tx, code string) error {
	revokeQuery := r.store.Rebind(`UPDATE oauth2_refresh_tokens SET revoked = ? WHERE issuing_code = ? AND revoked = ?`)
	if _, err := tx.ExecContext(ctx, revokeQuery, true, code, false); err != nil {
		return wrapBackendErr(err, "auth_code.consume.revoke_issued")
	}
	if err := tx.Commit(); err != nil {
		return wrapBackendErr(err, "auth_code.consume.revoke_commit")
	}
	return storeErrors.New(ErrCodeConsumed).WithDetail("code", code).WithDetail("reason", "replay")
}
