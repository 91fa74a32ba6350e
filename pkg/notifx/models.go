package notifx

import (
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// Kind identifies the category of an Event. Subscribers and the
// back-pressure drop policy key off this value.
type Kind string

const (
	KindToolInvoked            Kind = "tool.invoked"
	KindToolDenied              Kind = "tool.denied"
	KindProviderConnected       Kind = "provider.connected"
	KindProviderReauthRequired  Kind = "provider.reauth_required"
	KindProviderRevoked         Kind = "provider.revoked"
	KindProviderRateLimited     Kind = "provider.rate_limited"
	KindUsageLimitReached       Kind = "usage.limit_reached"

	// KindEventsDropped marks that a subscriber's bounded queue overflowed
	// and an event was discarded to make room. Its Payload is an
	// EventsDroppedPayload naming which Kind was dropped.
	KindEventsDropped Kind = "events_dropped"
)

// EventsDroppedPayload is the Payload of a KindEventsDropped event.
// Count is 2 on a normal overflow: one slot is freed for the triggering
// event and one for this marker. It is lower only when the queue held
// fewer events than that to evict.
type EventsDroppedPayload struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// Event is a single fact pushed to a tenant's (and optionally a single
// user's) subscribers. Payload is kind-specific and serialized as-is.
type Event struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	TenantID  kernel.TenantID `json:"tenant_id"`
	UserID    *kernel.UserID  `json:"user_id,omitempty"`
	Payload   interface{}     `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// TargetsUser reports whether the event is addressed to a specific user
// rather than broadcast to every subscriber in the tenant.
func (e Event) TargetsUser() bool {
	return e.UserID != nil
}
