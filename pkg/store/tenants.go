package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// Tenant is a billing/isolation boundary: every row in every other
// table is scoped to exactly one tenant.
type Tenant struct {
	ID         kernel.TenantID `db:"id"`
	Name       string          `db:"name"`
	Plan       kernel.PlanTier `db:"plan"`
	WrappedKey []byte          `db:"wrapped_key"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// TenantRepository persists tenants and their wrapped encryption keys.
// It also implements crypto.TenantKeySource, so a *TenantRepository can
// be handed directly to crypto.NewKeyring.
type TenantRepository struct {
	store *Store
}

func NewTenantRepository(s *Store) *TenantRepository {
	return &TenantRepository{store: s}
}

func (r *TenantRepository) Create(ctx context.Context, t Tenant) error {
	now := nowUTC()
	t.CreatedAt, t.UpdatedAt = now, now
	query := r.store.Rebind(`
		INSERT INTO tenants (id, name, plan, wrapped_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query,
		t.ID.String(), t.Name, string(t.Plan), t.WrappedKey, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storeErrors.New(ErrAlreadyExists).WithDetail("tenant_id", t.ID.String())
		}
		return wrapBackendErr(err, "tenant.create")
	}
	return nil
}

func (r *TenantRepository) Get(ctx context.Context, id kernel.TenantID) (*Tenant, error) {
	var t Tenant
	query := r.store.Rebind(`SELECT id, name, plan, wrapped_key, created_at, updated_at FROM tenants WHERE id = ?`)
	if err := r.store.DB.GetContext(ctx, &t, query, id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrNotFound).WithDetail("tenant_id", id.String())
		}
		return nil, wrapBackendErr(err, "tenant.get")
	}
	return &t, nil
}

// WrappedTenantKey implements crypto.TenantKeySource.
func (r *TenantRepository) WrappedTenantKey(ctx context.Context, tenantID kernel.TenantID) ([]byte, error) {
	t, err := r.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return t.WrappedKey, nil
}

// RotateKey swaps a tenant's wrapped key. Callers must invalidate any
// Keyring cache entry for this tenant afterward.
func (r *TenantRepository) RotateKey(ctx context.Context, tenantID kernel.TenantID, wrapped []byte) error {
	query := r.store.Rebind(`UPDATE tenants SET wrapped_key = ?, updated_at = ? WHERE id = ?`)
	res, err := r.store.DB.ExecContext(ctx, query, wrapped, nowUTC(), tenantID.String())
	if err != nil {
		return wrapBackendErr(err, "tenant.rotate_key")
	}
	return checkRowsAffected(res, tenantID.String())
}

func (r *TenantRepository) UpdatePlan(ctx context.Context, tenantID kernel.TenantID, plan kernel.PlanTier) error {
	query := r.store.Rebind(`UPDATE tenants SET plan = ?, updated_at = ? WHERE id = ?`)
	res, err := r.store.DB.ExecContext(ctx, query, string(plan), nowUTC(), tenantID.String())
	if err != nil {
		return wrapBackendErr(err, "tenant.update_plan")
	}
	return checkRowsAffected(res, tenantID.String())
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapBackendErr(err, "rows_affected")
	}
	if n == 0 {
		return storeErrors.New(ErrNotFound).WithDetail("id", id)
	}
	return nil
}
