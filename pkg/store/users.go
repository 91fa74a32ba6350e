package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// User is a human operator within a tenant. Password hashing is argon2id
// (see pkg/iam/login), never handled here.
type User struct {
	ID           kernel.UserID   `db:"id"`
	TenantID     kernel.TenantID `db:"tenant_id"`
	Email        string          `db:"email"`
	Name         string          `db:"name"`
	PasswordHash string          `db:"password_hash"`
	IsAdmin      bool            `db:"is_admin"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

type UserRepository struct {
	store *Store
}

func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{store: s}
}

func (r *UserRepository) Create(ctx context.Context, u User) error {
	now := nowUTC()
	u.CreatedAt, u.UpdatedAt = now, now
	query := r.store.Rebind(`
		INSERT INTO users (id, tenant_id, email, name, password_hash, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query,
		u.ID.String(), u.TenantID.String(), u.Email, u.Name, u.PasswordHash, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storeErrors.New(ErrAlreadyExists).WithDetail("email", u.Email)
		}
		return wrapBackendErr(err, "user.create")
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, tenantID kernel.TenantID, id kernel.UserID) (*User, error) {
	var u User
	query := r.store.Rebind(`SELECT * FROM users WHERE tenant_id = ? AND id = ?`)
	if err := r.store.DB.GetContext(ctx, &u, query, tenantID.String(), id.String()); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrNotFound).WithDetail("user_id", id.String())
		}
		return nil, wrapBackendErr(err, "user.get")
	}
	return &u, nil
}

// GetByEmail looks up a user by email within tenantID, as the login flow
// does; users of other tenants with the same email are not matched.
func (r *UserRepository) GetByEmail(ctx context.Context, tenantID kernel.TenantID, email string) (*User, error) {
	var u User
	query := r.store.Rebind(`SELECT * FROM users WHERE tenant_id = ? AND email = ?`)
	if err := r.store.DB.GetContext(ctx, &u, query, tenantID.String(), email); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeErrors.New(ErrNotFound).WithDetail("email", email)
		}
		return nil, wrapBackendErr(err, "user.get_by_email")
	}
	return &u, nil
}

func (r *UserRepository) UpdatePasswordHash(ctx context.Context, tenantID kernel.TenantID, id kernel.UserID, hash string) error {
	query := r.store.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`)
	res, err := r.store.DB.ExecContext(ctx, query, hash, nowUTC(), tenantID.String(), id.String())
	if err != nil {
		return wrapBackendErr(err, "user.update_password")
	}
	return checkRowsAffected(res, id.String())
}

func (r *UserRepository) ListByTenant(ctx context.Context, tenantID kernel.TenantID) ([]User, error) {
	var users []User
	query := r.store.Rebind(`SELECT * FROM users WHERE tenant_id = ? ORDER BY created_at, id`)
	if err := r.store.DB.SelectContext(ctx, &users, query, tenantID.String()); err != nil {
		return nil, wrapBackendErr(err, "user.list_by_tenant")
	}
	return users, nil
}
