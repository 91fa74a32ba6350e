// Package tools implements the protocol-agnostic tool registry and
// dispatcher (C6): a static table of callable tools, each with a typed
// input schema, a required capability set, a minimum plan tier, and a
// handler — looked up and invoked identically whether the caller spoke
// MCP, A2A, or REST.
package tools

import (
	"context"
	"encoding/json"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/providers"
)

// Category groups tools for rate-limiting purposes; every tool in a
// category shares one per-tenant token bucket.
type Category string

const (
	CategoryActivities Category = "activities"
	CategoryProfile    Category = "profile"
	CategoryHealth     Category = "health"
	CategoryNutrition  Category = "nutrition"
)

// Invocation carries everything a handler is allowed to observe — per
// spec §4.6 step 6, a handler may not reach outside this context for
// any tenant- or user-scoped state.
type Invocation struct {
	TenantID    kernel.TenantID
	UserID      kernel.UserID
	ProviderID  kernel.ProviderID
	Provider    providers.Provider
	AccessToken string
	Args        json.RawMessage
}

// Handler executes a tool call and returns its raw JSON result.
type Handler func(ctx context.Context, inv Invocation) (json.RawMessage, error)

// Descriptor is one entry in the static tool table.
type Descriptor struct {
	Name        kernel.ToolName
	Description string
	// InputSchema is a JSON-Schema-shaped document (object with
	// "properties"/"required"), advertised verbatim to MCP's
	// tools/list and checked by Validate before dispatch.
	InputSchema map[string]any
	// RequiredCapability is the upstream provider capability this tool
	// needs; the zero value means no provider call is involved.
	RequiredCapability providers.Capability
	Category           Category
	MinPlan            kernel.PlanTier
	// RequiredScopes are OAuth2/API-key scopes the caller's AuthContext
	// must all carry (kernel.AuthContext.HasAllScopes) before dispatch
	// proceeds, independent of MinPlan and RequiredCapability.
	RequiredScopes []string
	// DefaultEnabled is the bottom rung of spec §4.6's availability
	// chain: when no global disable, plan restriction, or tenant
	// override applies, this is the decision. A tool shipped disabled
	// by default still advertises in tools/list but dispatch refuses it
	// until a tenant override explicitly turns it on.
	DefaultEnabled bool
	Handler        Handler
}
