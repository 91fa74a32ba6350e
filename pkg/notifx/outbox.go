package notifx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pierre-platform/pierre/pkg/jobx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/store"
)

const dispatchJobType = "notify.dispatch"

// RegisterOutboxDispatcher wires a jobx "notify.dispatch" handler that
// drains undispatched outbox rows and republishes them to bus, then
// re-enqueues itself after interval, bridging the durable outbox table
// to the live bus.
func RegisterOutboxDispatcher(client *jobx.Client, outbox *store.NotificationOutboxRepository, bus *Bus, interval time.Duration) {
	client.Register(dispatchJobType, func(ctx context.Context, _ *jobx.JobInfo) error {
		drainOutboxOnce(ctx, outbox, bus)
		_, err := client.EnqueueDelayed(ctx, jobx.Job{Type: dispatchJobType, Queue: "notify"}, interval)
		return err
	})
}

// SeedOutboxDispatcher enqueues the first "notify.dispatch" job; call
// once at boot after RegisterOutboxDispatcher.
func SeedOutboxDispatcher(ctx context.Context, client *jobx.Client) error {
	_, err := client.Enqueue(ctx, jobx.Job{Type: dispatchJobType, Queue: "notify"})
	return err
}

func drainOutboxOnce(ctx context.Context, outbox *store.NotificationOutboxRepository, bus *Bus) {
	const batchSize = 100
	rows, err := outbox.Pending(ctx, batchSize)
	if err != nil {
		logx.WithError(err).Warn("notifx: failed to read pending outbox rows")
		return
	}
	for _, row := range rows {
		var payload interface{}
		if row.Payload != "" {
			if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
				logx.WithError(err).Warnf("notifx: outbox row %s has unparseable payload", row.ID)
			}
		}
		evt := Event{
			ID:        row.ID,
			Kind:      Kind(row.Kind),
			TenantID:  row.TenantID,
			Payload:   payload,
			CreatedAt: row.CreatedAt,
		}
		if row.UserID.Valid {
			userID := kernel.NewUserID(row.UserID.String)
			evt.UserID = &userID
		}
		bus.Publish(evt)
		if err := outbox.MarkDispatched(ctx, row.ID); err != nil {
			logx.WithError(err).Warnf("notifx: failed to mark outbox row %s dispatched", row.ID)
		}
	}
}
