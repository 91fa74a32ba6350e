package providers

import (
	"os"
	"strings"

	"github.com/pierre-platform/pierre/pkg/kernel"
)

// envOverride mirrors pkg/config's getEnv: an env var wins over the
// built-in default, letting a self-hosted deployment point a provider
// at a sandbox or regional endpoint without a code change.
func envOverride(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envScopesOverride(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewDefaultRegistry builds the registry Pierre ships with: the real
// wearable/activity providers plus the synthetic provider used for
// local development and tests. Descriptor AuthURL/TokenURL/DefaultScopes
// are resolved from PIERRE_<ID>_AUTH_URL / PIERRE_<ID>_TOKEN_URL /
// PIERRE_<ID>_SCOPES at construction time, so the registry must be
// rebuilt (not mutated) if env changes.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		newStrava(),
		newGarmin(),
		newFitbit(),
		newWhoop(),
		newCoros(),
		newTerra(),
		NewSyntheticProvider(),
	)
}

func newStrava() Provider {
	d := Descriptor{
		ID:             kernel.NewProviderID("strava"),
		DisplayName:    "Strava",
		AuthURL:        envOverride("PIERRE_STRAVA_AUTH_URL", "https://www.strava.com/oauth/authorize"),
		TokenURL:       envOverride("PIERRE_STRAVA_TOKEN_URL", "https://www.strava.com/oauth/token"),
		DefaultScopes:  envScopesOverride("PIERRE_STRAVA_SCOPES", []string{"read", "activity:read_all", "profile:read_all"}),
		ScopeSeparator: ScopeSeparatorComma,
		PKCERequired:   false,
		Capabilities:   CapabilityActivities | CapabilityAthleteProfile | CapabilityStats,
	}
	return newOAuthProvider(d, map[Capability]string{
		CapabilityActivities:     envOverride("PIERRE_STRAVA_API_BASE", "https://www.strava.com/api/v3") + "/athlete/activities",
		CapabilityAthleteProfile: envOverride("PIERRE_STRAVA_API_BASE", "https://www.strava.com/api/v3") + "/athlete",
		CapabilityStats:          envOverride("PIERRE_STRAVA_API_BASE", "https://www.strava.com/api/v3") + "/athletes/stats",
	})
}

func newGarmin() Provider {
	d := Descriptor{
		ID:             kernel.NewProviderID("garmin"),
		DisplayName:    "Garmin Connect",
		AuthURL:        envOverride("PIERRE_GARMIN_AUTH_URL", "https://connect.garmin.com/oauthConfirm"),
		TokenURL:       envOverride("PIERRE_GARMIN_TOKEN_URL", "https://connectapi.garmin.com/oauth-service/oauth/token"),
		DefaultScopes:  envScopesOverride("PIERRE_GARMIN_SCOPES", []string{"activity", "health"}),
		ScopeSeparator: ScopeSeparatorSpace,
		PKCERequired:   true,
		Capabilities:   CapabilityActivities | CapabilityHeartRate | CapabilitySleep | CapabilityWorkouts,
	}
	base := envOverride("PIERRE_GARMIN_API_BASE", "https://apis.garmin.com/wellness-api/rest")
	return newOAuthProvider(d, map[Capability]string{
		CapabilityActivities: base + "/activities",
		CapabilityHeartRate:  base + "/dailies",
		CapabilitySleep:      base + "/sleeps",
		CapabilityWorkouts:   base + "/workouts",
	})
}

func newFitbit() Provider {
	d := Descriptor{
		ID:             kernel.NewProviderID("fitbit"),
		DisplayName:    "Fitbit",
		AuthURL:        envOverride("PIERRE_FITBIT_AUTH_URL", "https://www.fitbit.com/oauth2/authorize"),
		TokenURL:       envOverride("PIERRE_FITBIT_TOKEN_URL", "https://api.fitbit.com/oauth2/token"),
		DefaultScopes:  envScopesOverride("PIERRE_FITBIT_SCOPES", []string{"activity", "heartrate", "sleep", "profile"}),
		ScopeSeparator: ScopeSeparatorSpace,
		PKCERequired:   true,
		Capabilities:   CapabilityActivities | CapabilityHeartRate | CapabilitySleep | CapabilityAthleteProfile,
	}
	base := envOverride("PIERRE_FITBIT_API_BASE", "https://api.fitbit.com/1/user/-")
	return newOAuthProvider(d, map[Capability]string{
		CapabilityActivities:     base + "/activities/list.json",
		CapabilityHeartRate:      base + "/activities/heart/date/today/1d.json",
		CapabilitySleep:          base + "/sleep/date/today.json",
		CapabilityAthleteProfile: base + "/profile.json",
	})
}

func newWhoop() Provider {
	d := Descriptor{
		ID:             kernel.NewProviderID("whoop"),
		DisplayName:    "WHOOP",
		AuthURL:        envOverride("PIERRE_WHOOP_AUTH_URL", "https://api.prod.whoop.com/oauth/oauth2/auth"),
		TokenURL:       envOverride("PIERRE_WHOOP_TOKEN_URL", "https://api.prod.whoop.com/oauth/oauth2/token"),
		DefaultScopes:  envScopesOverride("PIERRE_WHOOP_SCOPES", []string{"read:recovery", "read:sleep", "read:workout", "read:profile"}),
		ScopeSeparator: ScopeSeparatorSpace,
		PKCERequired:   false,
		Capabilities:   CapabilityRecovery | CapabilitySleep | CapabilityWorkouts | CapabilityAthleteProfile,
	}
	base := envOverride("PIERRE_WHOOP_API_BASE", "https://api.prod.whoop.com/developer/v1")
	return newOAuthProvider(d, map[Capability]string{
		CapabilityRecovery:       base + "/recovery",
		CapabilitySleep:          base + "/activity/sleep",
		CapabilityWorkouts:       base + "/activity/workout",
		CapabilityAthleteProfile: base + "/user/profile/basic",
	})
}

func newCoros() Provider {
	d := Descriptor{
		ID:             kernel.NewProviderID("coros"),
		DisplayName:    "COROS",
		AuthURL:        envOverride("PIERRE_COROS_AUTH_URL", "https://open.coros.com/oauth2/authorize"),
		TokenURL:       envOverride("PIERRE_COROS_TOKEN_URL", "https://open.coros.com/oauth2/accesstoken"),
		DefaultScopes:  envScopesOverride("PIERRE_COROS_SCOPES", []string{"activity"}),
		ScopeSeparator: ScopeSeparatorSpace,
		PKCERequired:   false,
		Capabilities:   CapabilityActivities | CapabilityWorkouts,
	}
	base := envOverride("PIERRE_COROS_API_BASE", "https://open.coros.com/v2")
	return newOAuthProvider(d, map[Capability]string{
		CapabilityActivities: base + "/activity/list",
		CapabilityWorkouts:   base + "/workout/list",
	})
}

func newTerra() Provider {
	d := Descriptor{
		ID:             kernel.NewProviderID("terra"),
		DisplayName:    "Terra",
		AuthURL:        envOverride("PIERRE_TERRA_AUTH_URL", "https://widget.tryterra.co/session"),
		TokenURL:       envOverride("PIERRE_TERRA_TOKEN_URL", "https://api.tryterra.co/v2/auth/authenticateUser"),
		DefaultScopes:  envScopesOverride("PIERRE_TERRA_SCOPES", []string{"activity", "body", "sleep", "nutrition"}),
		ScopeSeparator: ScopeSeparatorSpace,
		PKCERequired:   false,
		Capabilities:   CapabilityActivities | CapabilitySleep | CapabilityNutrition | CapabilityStats,
	}
	base := envOverride("PIERRE_TERRA_API_BASE", "https://api.tryterra.co/v2")
	return newOAuthProvider(d, map[Capability]string{
		CapabilityActivities: base + "/activity",
		CapabilitySleep:      base + "/sleep",
		CapabilityNutrition:  base + "/nutrition",
		CapabilityStats:      base + "/body",
	})
}
