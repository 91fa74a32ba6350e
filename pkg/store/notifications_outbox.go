package store

import (
	"database/sql"
	"time"

	"context"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// OutboxEntry is a durable record of a notifx.Event. The jobx
// "notify.dispatch" job drains undispatched rows and republishes them to
// the live notifx.Bus. Enqueue writes a row on its own connection; it
// does not join the transaction of the state change the event describes.
type OutboxEntry struct {
	ID         string          `db:"id"`
	TenantID   kernel.TenantID `db:"tenant_id"`
	UserID     sql.NullString  `db:"user_id"`
	Kind       string          `db:"kind"`
	Payload    string          `db:"payload"`
	Dispatched bool            `db:"dispatched"`
	CreatedAt  time.Time       `db:"created_at"`
}

type NotificationOutboxRepository struct {
	store *Store
}

func NewNotificationOutboxRepository(s *Store) *NotificationOutboxRepository {
	return &NotificationOutboxRepository{store: s}
}

func (r *NotificationOutboxRepository) Enqueue(ctx context.Context, e OutboxEntry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	e.CreatedAt = nowUTC()
	query := r.store.Rebind(`
		INSERT INTO notifications_outbox (id, tenant_id, user_id, kind, payload, dispatched, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.store.DB.ExecContext(ctx, query, e.ID, e.TenantID.String(), e.UserID, e.Kind, e.Payload, false, e.CreatedAt)
	if err != nil {
		return wrapBackendErr(err, "notifications_outbox.enqueue")
	}
	return nil
}

// Pending returns up to limit undispatched rows, oldest first.
func (r *NotificationOutboxRepository) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	var rows []OutboxEntry
	query := r.store.Rebind(`
		SELECT * FROM notifications_outbox
		WHERE dispatched = ?
		ORDER BY created_at, id
		LIMIT ?`)
	if err := r.store.DB.SelectContext(ctx, &rows, query, false, limit); err != nil {
		return nil, wrapBackendErr(err, "notifications_outbox.pending")
	}
	return rows, nil
}

func (r *NotificationOutboxRepository) MarkDispatched(ctx context.Context, id string) error {
	query := r.store.Rebind(`UPDATE notifications_outbox SET dispatched = ? WHERE id = ?`)
	_, err := r.store.DB.ExecContext(ctx, query, true, id)
	if err != nil {
		return wrapBackendErr(err, "notifications_outbox.mark_dispatched")
	}
	return nil
}
