// Package providers is the registry of upstream wearable/activity data
// sources Pierre can connect a user to: the set of supported providers,
// their OAuth endpoints, and the capability fetchers each one exposes.
package providers

import (
	"strings"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// Capability is one kind of data a provider can supply once connected.
type Capability uint16

const (
	CapabilityActivities Capability = 1 << iota
	CapabilityAthleteProfile
	CapabilityStats
	CapabilityHeartRate
	CapabilitySleep
	CapabilityRecovery
	CapabilityNutrition
	CapabilityWorkouts
)

var capabilityNames = map[Capability]string{
	CapabilityActivities:     "activities",
	CapabilityAthleteProfile: "athlete_profile",
	CapabilityStats:          "stats",
	CapabilityHeartRate:      "heart_rate",
	CapabilitySleep:          "sleep",
	CapabilityRecovery:       "recovery",
	CapabilityNutrition:      "nutrition",
	CapabilityWorkouts:       "workouts",
}

// Has reports whether set includes capability c.
func (c Capability) Has(set Capability) bool {
	return set&c != 0
}

// Names renders a capability set as its component names, stable order.
func (c Capability) Names() []string {
	names := make([]string, 0, len(capabilityNames))
	for flag := CapabilityActivities; flag <= CapabilityWorkouts; flag <<= 1 {
		if flag.Has(c) {
			names = append(names, capabilityNames[flag])
		}
	}
	return names
}

// ScopeSeparator is how a provider expects multiple OAuth scopes joined
// in the authorize/token request.
type ScopeSeparator string

const (
	ScopeSeparatorSpace ScopeSeparator = " "
	ScopeSeparatorComma ScopeSeparator = ","
)

// Descriptor is the static, boot-time-registered description of one
// upstream provider. AuthURL/TokenURL/DefaultScopes are overridable per
// deployment via PIERRE_<ID>_AUTH_URL / PIERRE_<ID>_TOKEN_URL /
// PIERRE_<ID>_SCOPES so a self-hosted instance can point at a sandbox.
type Descriptor struct {
	ID             kernel.ProviderID
	DisplayName    string
	AuthURL        string
	TokenURL       string
	DefaultScopes  []string
	ScopeSeparator ScopeSeparator
	PKCERequired   bool
	Capabilities   Capability
}

// JoinScopes renders scopes using this descriptor's separator, the
// format the upstream authorize/token endpoint expects.
func (d Descriptor) JoinScopes(scopes []string) string {
	return strings.Join(scopes, string(d.ScopeSeparator))
}

// RequiresOAuth reports whether connecting this provider involves the
// OAuth2 authorize/token dance. Only the synthetic provider does not.
func (d Descriptor) RequiresOAuth() bool {
	return d.AuthURL != ""
}
