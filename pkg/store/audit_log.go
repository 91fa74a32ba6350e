package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// AuditEntry records one tenant-scoped administrative or security
// event (client registered, key rotated, credential revoked, ...).
type AuditEntry struct {
	ID        string          `db:"id"`
	TenantID  kernel.TenantID `db:"tenant_id"`
	UserID    sql.NullString  `db:"user_id"`
	Action    string          `db:"action"`
	Detail    string          `db:"detail"`
	CreatedAt time.Time       `db:"created_at"`
}

type AuditLogRepository struct {
	store *Store
}

func NewAuditLogRepository(s *Store) *AuditLogRepository {
	return &AuditLogRepository{store: s}
}

func (r *AuditLogRepository) Record(ctx context.Context, e AuditEntry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	e.CreatedAt = nowUTC()
	query := r.store.Rebind(`
		INSERT INTO audit_log (id, tenant_id, user_id, action, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query, e.ID, e.TenantID.String(), e.UserID, e.Action, e.Detail, e.CreatedAt)
	if err != nil {
		return wrapBackendErr(err, "audit_log.record")
	}
	return nil
}

// List returns a tenant's audit trail oldest-first, paginated by the
// (created_at, id) keyset so concurrent inserts never produce
// duplicates or gaps across pages.
func (r *AuditLogRepository) List(ctx context.Context, tenantID kernel.TenantID, cursor kernel.Cursor, limit int) (kernel.KeysetPage[AuditEntry], error) {
	query := r.store.Rebind(`
		SELECT * FROM audit_log
		WHERE tenant_id = ? AND (created_at > ? OR (created_at = ? AND id > ?))
		ORDER BY created_at, id
		LIMIT ?`)
	boundary := cursor.CreatedAt()
	var rows []AuditEntry
	if err := r.store.DB.SelectContext(ctx, &rows, query, tenantID.String(), boundary, boundary, cursor.ID, limit+1); err != nil {
		return kernel.KeysetPage[AuditEntry]{}, wrapBackendErr(err, "audit_log.list")
	}
	return buildKeysetPage(rows, limit, func(e AuditEntry) (time.Time, string) {
		return e.CreatedAt, e.ID
	})
}

// buildKeysetPage trims a limit+1-row fetch down to limit rows and
// derives NextCursor/HasMore from whether the extra row was present.
func buildKeysetPage[T any](rows []T, limit int, key func(T) (time.Time, string)) (kernel.KeysetPage[T], error) {
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	page := kernel.KeysetPage[T]{Items: rows, HasMore: hasMore}
	if hasMore && len(rows) > 0 {
		createdAt, id := key(rows[len(rows)-1])
		next, err := kernel.NewCursor(createdAt, id).Encode()
		if err != nil {
			return kernel.KeysetPage[T]{}, err
		}
		page.NextCursor = next
	}
	return page, nil
}
