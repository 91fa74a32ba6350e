package providers

import (
	"context"
	"encoding/json"
	"time"
)

// TokenSet is what an upstream provider hands back from the code
// exchange or a refresh: Pierre stores AccessToken/RefreshToken
// encrypted (pkg/crypto) and never logs them.
type TokenSet struct {
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
	Scopes            []string
	ProviderAccountID string
}

// Provider is the single polymorphic interface every upstream
// integration implements. FetchCapability is the one data-access entry
// point; callers must check Descriptor().Capabilities.Has(capability)
// before calling, since a provider that doesn't declare a capability
// may not implement it at all.
type Provider interface {
	Descriptor() Descriptor

	// AuthorizeURL builds the upstream authorize redirect for a given
	// opaque state and (for providers requiring PKCE) code challenge.
	AuthorizeURL(state, codeChallenge string) string

	// ExchangeCode trades an authorize-step code for a TokenSet.
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (TokenSet, error)

	// Refresh trades a refresh token for a new TokenSet.
	Refresh(ctx context.Context, refreshToken string) (TokenSet, error)

	// FetchCapability retrieves one kind of data. params carries
	// capability-specific filters (e.g. "since", "page"); raw is the
	// provider's native JSON response, left to the caller to shape.
	FetchCapability(ctx context.Context, accessToken string, capability Capability, params map[string]string) (json.RawMessage, error)
}
