// Package notifxconsole drains a notifx.Subscription to logx. Useful
// in development and in tests where no SSE/WS transport is attached.
package notifxconsole

import (
	"context"

	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/notifx"
)

// Drain logs every event received on sub.Events until the subscription
// closes or ctx is cancelled. Intended to run in its own goroutine.
func Drain(ctx context.Context, sub *notifx.Subscription) {
	for {
		select {
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			logx.WithFields(logx.Fields{
				"kind":      evt.Kind,
				"tenant_id": evt.TenantID.String(),
			}).Info("notifx/console: event")
		case <-ctx.Done():
			return
		}
	}
}
