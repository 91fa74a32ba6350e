package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// syntheticProvider requires no upstream OAuth round-trip and no
// network access: AuthorizeURL/ExchangeCode/Refresh all succeed
// locally and FetchCapability returns fixed, deterministic payloads.
// It exists so the dispatcher, the connect flow, and integration tests
// can exercise every capability without a real wearable account.
type syntheticProvider struct {
	descriptor Descriptor
}

// NewSyntheticProvider returns the always-available test provider.
func NewSyntheticProvider() Provider {
	return &syntheticProvider{
		descriptor: Descriptor{
			ID:             kernel.NewProviderID("synthetic"),
			DisplayName:    "Synthetic (test data)",
			AuthURL:        "",
			TokenURL:       "",
			DefaultScopes:  []string{"activities", "profile", "sleep"},
			ScopeSeparator: ScopeSeparatorSpace,
			PKCERequired:   false,
			Capabilities: CapabilityActivities | CapabilityAthleteProfile | CapabilityStats |
				CapabilityHeartRate | CapabilitySleep | CapabilityRecovery | CapabilityNutrition | CapabilityWorkouts,
		},
	}
}

func (p *syntheticProvider) Descriptor() Descriptor { return p.descriptor }

// AuthorizeURL returns a local pseudo-URL carrying state so the
// connect-flow callback handler has something to redirect through
// without ever leaving the deployment.
func (p *syntheticProvider) AuthorizeURL(state, codeChallenge string) string {
	return fmt.Sprintf("pierre://synthetic/authorize?state=%s", state)
}

func (p *syntheticProvider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (TokenSet, error) {
	return TokenSet{
		AccessToken:       "synthetic-access-" + code,
		RefreshToken:      "synthetic-refresh-" + code,
		ExpiresAt:         syntheticExpiry(),
		Scopes:            p.descriptor.DefaultScopes,
		ProviderAccountID: "synthetic-athlete-1",
	}, nil
}

func (p *syntheticProvider) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	return TokenSet{
		AccessToken:       "synthetic-access-" + refreshToken,
		RefreshToken:      refreshToken,
		ExpiresAt:         syntheticExpiry(),
		Scopes:            p.descriptor.DefaultScopes,
		ProviderAccountID: "synthetic-athlete-1",
	}, nil
}

func (p *syntheticProvider) FetchCapability(ctx context.Context, accessToken string, capability Capability, params map[string]string) (json.RawMessage, error) {
	if !capability.Has(p.descriptor.Capabilities) {
		return nil, providerErrors.New(ErrCapabilityMissing).
			WithDetail("provider_id", p.descriptor.ID.String())
	}
	payload, ok := syntheticFixtures[capability]
	if !ok {
		return nil, providerErrors.New(ErrCapabilityMissing).
			WithDetail("provider_id", p.descriptor.ID.String())
	}
	return json.RawMessage(payload), nil
}

// syntheticExpiry grants a fixed one-hour window from now; the
// synthetic provider has no real upstream token lifetime to mirror.
func syntheticExpiry() time.Time {
	return time.Now().Add(time.Hour)
}

var syntheticFixtures = map[Capability]string{
	CapabilityActivities:     `[{"id":"synthetic-activity-1","type":"Run","distance_m":8046.7,"duration_s":2700,"started_at":"2026-07-01T06:00:00Z"}]`,
	CapabilityAthleteProfile: `{"id":"synthetic-athlete-1","display_name":"Test Athlete","sex":"U","weight_kg":70}`,
	CapabilityStats:          `{"total_distance_m":104607.0,"total_activities":12}`,
	CapabilityHeartRate:      `{"resting_bpm":52,"max_bpm":187,"samples":[{"t":"2026-07-01T06:00:00Z","bpm":142}]}`,
	CapabilitySleep:          `{"date":"2026-07-01","total_minutes":432,"deep_minutes":98,"rem_minutes":110}`,
	CapabilityRecovery:       `{"date":"2026-07-01","score":68,"hrv_ms":54}`,
	CapabilityNutrition:      `{"date":"2026-07-01","calories":2400,"protein_g":140}`,
	CapabilityWorkouts:       `[{"id":"synthetic-workout-1","type":"Strength","duration_s":3600}]`,
}
