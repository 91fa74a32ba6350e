package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// APIKey is a bound opaque credential for the dispatch algorithm's
// second auth path (spec §4.8): "for opaque API key: prefix lookup,
// constant-time comparison of remainder against hash, load bound
// (tenant, scopes, rate policy)." Only KeyHash (never the raw key) is
// persisted; KeyPrefix exists purely to make the lookup an index hit
// instead of a full-table hash comparison.
type APIKey struct {
	ID         string          `db:"id"`
	TenantID   kernel.TenantID `db:"tenant_id"`
	UserID     sql.NullString  `db:"user_id"`
	KeyPrefix  string          `db:"key_prefix"`
	KeyHash    string          `db:"key_hash"`
	Scopes     stringList      `db:"scopes"`
	Revoked    bool            `db:"revoked"`
	ExpiresAt  *time.Time      `db:"expires_at"`
	LastUsedAt *time.Time      `db:"last_used_at"`
	CreatedAt  time.Time       `db:"created_at"`
}

type APIKeyRepository struct {
	store *Store
}

func NewAPIKeyRepository(s *Store) *APIKeyRepository {
	return &APIKeyRepository{store: s}
}

// Create persists a new bound API key. The caller supplies already-hashed
// key material — this repository never sees a raw key.
func (r *APIKeyRepository) Create(ctx context.Context, key APIKey) error {
	if key.ID == "" {
		key.ID = NewID()
	}
	key.CreatedAt = nowUTC()
	query := r.store.Rebind(`
		INSERT INTO api_keys (id, tenant_id, user_id, key_prefix, key_hash, scopes, revoked, expires_at, last_used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query,
		key.ID, key.TenantID.String(), key.UserID, key.KeyPrefix, key.KeyHash,
		key.Scopes, key.Revoked, key.ExpiresAt, key.LastUsedAt, key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storeErrors.New(ErrAlreadyExists).WithDetail("key_prefix", key.KeyPrefix)
		}
		return wrapBackendErr(err, "api_key.create")
	}
	return nil
}

// FindByPrefix narrows the lookup to the (typically few) keys sharing a
// prefix; the caller does the constant-time hash comparison against
// KeyHash itself, since that comparison must not be a database index
// operation (spec §4.8's "constant-time comparison of remainder").
func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) ([]APIKey, error) {
	var rows []APIKey
	query := r.store.Rebind(`SELECT * FROM api_keys WHERE key_prefix = ? AND revoked = ?`)
	if err := r.store.DB.SelectContext(ctx, &rows, query, prefix, false); err != nil {
		return nil, wrapBackendErr(err, "api_key.find_by_prefix")
	}
	return rows, nil
}

func (r *APIKeyRepository) Revoke(ctx context.Context, id string) error {
	query := r.store.Rebind(`UPDATE api_keys SET revoked = ? WHERE id = ?`)
	res, err := r.store.DB.ExecContext(ctx, query, true, id)
	if err != nil {
		return wrapBackendErr(err, "api_key.revoke")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapBackendErr(err, "api_key.revoke")
	}
	if n == 0 {
		return storeErrors.New(ErrNotFound).WithDetail("id", id)
	}
	return nil
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	query := r.store.Rebind(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`)
	_, err := r.store.DB.ExecContext(ctx, query, nowUTC(), id)
	if err != nil {
		return wrapBackendErr(err, "api_key.touch_last_used")
	}
	return nil
}
