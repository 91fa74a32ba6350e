package providers

import (
	"context"
	"testing"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

func TestNewDefaultRegistryListsExpectedProviders(t *testing.T) {
	r := NewDefaultRegistry()
	got := r.ListSupported()
	want := map[string]bool{
		"coros": true, "fitbit": true, "garmin": true,
		"strava": true, "synthetic": true, "terra": true, "whoop": true,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d providers, got %d: %v", len(want), len(got), got)
	}
	for _, id := range got {
		if !want[id.String()] {
			t.Errorf("unexpected provider %q in registry", id)
		}
	}
}

func TestRegistryGetUnsupportedReturnsError(t *testing.T) {
	r := NewDefaultRegistry()
	if _, err := r.Get(kernel.NewProviderID("not-a-real-provider")); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestSyntheticProviderRoundTrip(t *testing.T) {
	p := NewSyntheticProvider()
	ctx := context.Background()

	tokens, err := p.ExchangeCode(ctx, "abc123", "", "https://pierre.example/callback")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected non-empty token set")
	}

	refreshed, err := p.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Fatal("expected non-empty refreshed access token")
	}
}

func TestSyntheticProviderFetchCapabilityRejectsUndeclared(t *testing.T) {
	p := NewSyntheticProvider().(*syntheticProvider)
	p.descriptor.Capabilities = CapabilityActivities // narrow for this test

	if _, err := p.FetchCapability(context.Background(), "token", CapabilitySleep, nil); err == nil {
		t.Fatal("expected ErrCapabilityMissing for undeclared capability")
	}
}

func TestSyntheticProviderFetchCapabilityReturnsFixture(t *testing.T) {
	p := NewSyntheticProvider()
	raw, err := p.FetchCapability(context.Background(), "token", CapabilityActivities, nil)
	if err != nil {
		t.Fatalf("FetchCapability: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected non-empty fixture payload")
	}
}

func TestCapabilityHasAndNames(t *testing.T) {
	set := CapabilityActivities | CapabilitySleep
	if !CapabilityActivities.Has(set) {
		t.Fatal("expected CapabilityActivities.Has(set) to be true")
	}
	if CapabilityRecovery.Has(set) {
		t.Fatal("expected CapabilityRecovery.Has(set) to be false")
	}
	if got := set.Names(); len(got) != 2 || got[0] != "activities" || got[1] != "sleep" {
		t.Fatalf("Names = %v, want [activities sleep]", got)
	}
}

func TestDescriptorJoinScopes(t *testing.T) {
	d := Descriptor{ScopeSeparator: ScopeSeparatorComma}
	if got := d.JoinScopes([]string{"a", "b", "c"}); got != "a,b,c" {
		t.Fatalf("JoinScopes = %q, want %q", got, "a,b,c")
	}
}

func TestDescriptorRequiresOAuth(t *testing.T) {
	if NewSyntheticProvider().Descriptor().RequiresOAuth() {
		t.Fatal("synthetic provider should not require OAuth")
	}
	strava := newStrava()
	if !strava.Descriptor().RequiresOAuth() {
		t.Fatal("strava provider should require OAuth")
	}
}
