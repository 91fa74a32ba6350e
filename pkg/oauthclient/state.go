package oauthclient

import (
	"context"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// PendingConnection is the short-lived record created at the start of
// an upstream connect flow and destroyed the moment its callback
// arrives — state is the CSRF token the provider echoes back.
type PendingConnection struct {
	State        string
	TenantID     kernel.TenantID
	UserID       kernel.UserID
	ProviderID   kernel.ProviderID
	CodeVerifier string
	ReturnURL    string
	CreatedAt    time.Time
}

// StateStore persists pending connections between the initiate and
// callback steps. PopAndValidate must be atomic: a state value is
// usable exactly once, matching the authorization code's one-time-use
// invariant (I1) one layer up the stack.
type StateStore interface {
	Put(ctx context.Context, pc PendingConnection, ttl time.Duration) error
	PopAndValidate(ctx context.Context, state string) (*PendingConnection, error)
}
