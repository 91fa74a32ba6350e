package tools

import (
	"context"
	"encoding/json"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/providers"
)

// Registry is the static, in-memory tool table: built once at startup
// from Catalog() and looked up by every protocol adapter identically.
type Registry struct {
	byName map[kernel.ToolName]Descriptor
	all    []Descriptor
}

func NewRegistry(descriptors []Descriptor) *Registry {
	r := &Registry{byName: make(map[kernel.ToolName]Descriptor, len(descriptors)), all: descriptors}
	for _, d := range descriptors {
		r.byName[d.Name] = d
	}
	return r
}

func (r *Registry) Get(name kernel.ToolName) (Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, toolErrors.New(ErrToolNotFound).WithDetail("tool_name", name.String())
	}
	return d, nil
}

func (r *Registry) List() []Descriptor {
	return r.all
}

// fetchCapabilityParams turns a tool call's raw JSON arguments into the
// string-keyed filter map FetchCapability expects; every numeric/bool
// field is stringified since the upstream provider fixtures (and real
// providers' query params) are string-typed on the wire.
func fetchCapabilityParams(args json.RawMessage) map[string]string {
	if len(args) == 0 {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(args, &raw); err != nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			if b, err := json.Marshal(val); err == nil {
				out[k] = string(b)
			}
		}
	}
	return out
}

// capabilityHandler builds a Handler that checks the provider declares
// the capability, then fetches it — the shape shared by every
// provider-backed tool in the catalog.
func capabilityHandler(capability providers.Capability) Handler {
	return func(ctx context.Context, inv Invocation) (json.RawMessage, error) {
		if !inv.Provider.Descriptor().Capabilities.Has(capability) {
			return nil, toolErrors.New(ErrCapabilityMissing).WithDetail("provider_id", inv.ProviderID.String())
		}
		return inv.Provider.FetchCapability(ctx, inv.AccessToken, capability, fetchCapabilityParams(inv.Args))
	}
}

var emptySchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{},
}

var sinceSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"since": map[string]any{"type": "string"},
	},
}

// Catalog returns Pierre's static tool table — the one source of truth
// for MCP tools/list, A2A skill advertisement, and REST routing alike.
func Catalog() []Descriptor {
	return []Descriptor{
		{
			Name:               kernel.NewToolName("list_activities"),
			Description:        "List the connected user's recorded activities (runs, rides, and similar workouts).",
			InputSchema:        sinceSchema,
			RequiredCapability: providers.CapabilityActivities,
			Category:           CategoryActivities,
			MinPlan:            kernel.PlanFree,
			RequiredScopes:     []string{"tools:activities:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilityActivities),
		},
		{
			Name:               kernel.NewToolName("get_athlete_profile"),
			Description:        "Fetch the connected user's athlete profile (name, sex, weight).",
			InputSchema:        emptySchema,
			RequiredCapability: providers.CapabilityAthleteProfile,
			Category:           CategoryProfile,
			MinPlan:            kernel.PlanFree,
			RequiredScopes:     []string{"tools:profile:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilityAthleteProfile),
		},
		{
			Name:               kernel.NewToolName("get_stats"),
			Description:        "Fetch lifetime activity totals for the connected user.",
			InputSchema:        emptySchema,
			RequiredCapability: providers.CapabilityStats,
			Category:           CategoryActivities,
			MinPlan:            kernel.PlanFree,
			RequiredScopes:     []string{"tools:activities:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilityStats),
		},
		{
			Name:               kernel.NewToolName("get_heart_rate"),
			Description:        "Fetch heart-rate samples and resting/max bpm for the connected user.",
			InputSchema:        sinceSchema,
			RequiredCapability: providers.CapabilityHeartRate,
			Category:           CategoryHealth,
			MinPlan:            kernel.PlanPro,
			RequiredScopes:     []string{"tools:health:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilityHeartRate),
		},
		{
			Name:               kernel.NewToolName("get_sleep"),
			Description:        "Fetch the connected user's sleep stages and duration for a given date.",
			InputSchema:        sinceSchema,
			RequiredCapability: providers.CapabilitySleep,
			Category:           CategoryHealth,
			MinPlan:            kernel.PlanPro,
			RequiredScopes:     []string{"tools:health:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilitySleep),
		},
		{
			Name:               kernel.NewToolName("get_recovery"),
			Description:        "Fetch the connected user's recovery score and HRV for a given date.",
			InputSchema:        sinceSchema,
			RequiredCapability: providers.CapabilityRecovery,
			Category:           CategoryHealth,
			MinPlan:            kernel.PlanPro,
			RequiredScopes:     []string{"tools:health:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilityRecovery),
		},
		{
			Name:               kernel.NewToolName("get_nutrition"),
			Description:        "Fetch the connected user's logged nutrition for a given date.",
			InputSchema:        sinceSchema,
			RequiredCapability: providers.CapabilityNutrition,
			Category:           CategoryNutrition,
			MinPlan:            kernel.PlanEnterprise,
			RequiredScopes:     []string{"tools:nutrition:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilityNutrition),
		},
		{
			Name:               kernel.NewToolName("list_workouts"),
			Description:        "List the connected user's structured workouts.",
			InputSchema:        sinceSchema,
			RequiredCapability: providers.CapabilityWorkouts,
			Category:           CategoryActivities,
			MinPlan:            kernel.PlanFree,
			RequiredScopes:     []string{"tools:activities:read"},
			DefaultEnabled:     true,
			Handler:            capabilityHandler(providers.CapabilityWorkouts),
		},
	}
}
