package store

import (
	"context"
	"database/sql"
	"time"
)

// SigningKey is an RS256 key pair advertised in JWKS under its kid.
// Retiring a key sets RetireAt instead of deleting it immediately, so
// tokens signed just before rotation still verify until they expire.
type SigningKey struct {
	Kid        string       `db:"kid"`
	PrivatePEM []byte       `db:"private_pem"`
	PublicPEM  []byte       `db:"public_pem"`
	Active     bool         `db:"active"`
	CreatedAt  time.Time    `db:"created_at"`
	RetireAt   sql.NullTime `db:"retire_at"`
}

type SigningKeyRepository struct {
	store *Store
}

func NewSigningKeyRepository(s *Store) *SigningKeyRepository {
	return &SigningKeyRepository{store: s}
}

func (r *SigningKeyRepository) Create(ctx context.Context, k SigningKey) error {
	k.CreatedAt = nowUTC()
	query := r.store.Rebind(`
		INSERT INTO oauth2_signing_keys (kid, private_pem, public_pem, active, created_at, retire_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query, k.Kid, k.PrivatePEM, k.PublicPEM, k.Active, k.CreatedAt, k.RetireAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storeErrors.New(ErrAlreadyExists).WithDetail("kid", k.Kid)
		}
		return wrapBackendErr(err, "signing_key.create")
	}
	return nil
}

// ActiveKey returns the current signing key, the one new tokens are
// minted with.
func (r *SigningKeyRepository) ActiveKey(ctx context.Context) (*SigningKey, error) {
	var k SigningKey
	query := r.store.Rebind(`SELECT * FROM oauth2_signing_keys WHERE active = ? ORDER BY created_at DESC LIMIT 1`)
	if err := r.store.DB.GetContext(ctx, &k, query, true); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrNotFound).WithDetail("reason", "no active signing key")
		}
		return nil, wrapBackendErr(err, "signing_key.active")
	}
	return &k, nil
}

// Verifiable returns every key JWKS should advertise: the active key
// plus any retiring key whose RetireAt has not yet passed.
func (r *SigningKeyRepository) Verifiable(ctx context.Context) ([]SigningKey, error) {
	var keys []SigningKey
	query := r.store.Rebind(`
		SELECT * FROM oauth2_signing_keys
		WHERE active = ? OR retire_at IS NULL OR retire_at > ?
		ORDER BY created_at DESC`)
	if err := r.store.DB.SelectContext(ctx, &keys, query, true, nowUTC()); err != nil {
		return nil, wrapBackendErr(err, "signing_key.verifiable")
	}
	return keys, nil
}

// Rotate deactivates the current active key (scheduling its retirement
// for retireAt) and inserts newKey as the new active key.
func (r *SigningKeyRepository) Rotate(ctx context.Context, retireAt time.Time, newKey SigningKey) error {
	tx, err := r.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return wrapBackendErr(err, "signing_key.rotate.begin")
	}
	defer tx.Rollback()

	deactivateQuery := r.store.Rebind(`UPDATE oauth2_signing_keys SET active = ?, retire_at = ? WHERE active = ?`)
	if _, err := tx.ExecContext(ctx, deactivateQuery, false, retireAt, true); err != nil {
		return wrapBackendErr(err, "signing_key.rotate.deactivate")
	}

	newKey.CreatedAt = nowUTC()
	insertQuery := r.store.Rebind(`
		INSERT INTO oauth2_signing_keys (kid, private_pem, public_pem, active, created_at, retire_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertQuery, newKey.Kid, newKey.PrivatePEM, newKey.PublicPEM, true, newKey.CreatedAt, nil); err != nil {
		return wrapBackendErr(err, "signing_key.rotate.insert")
	}

	if err := tx.Commit(); err != nil {
		return wrapBackendErr(err, "signing_key.rotate.commit")
	}
	return nil
}
