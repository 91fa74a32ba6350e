package tools

import (
	"context"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/store"
)

// AvailabilitySource names which rung of the precedence chain decided a
// tool's (un)availability, per spec §4.6's closed enum.
type AvailabilitySource string

const (
	SourceGlobalDisabled  AvailabilitySource = "global_disabled"
	SourcePlanRestriction AvailabilitySource = "plan_restriction"
	SourceTenantOverride  AvailabilitySource = "tenant_override"
	SourceDefault         AvailabilitySource = "default"
)

// Availability is the outcome of resolving one tool for one tenant.
type Availability struct {
	Enabled bool
	Source  AvailabilitySource
	Reason  string
}

// GlobalDisableList is the operator-controlled set of tools disabled
// platform-wide regardless of plan or tenant override — always wins,
// per spec §4.6.
type GlobalDisableList struct {
	disabled map[kernel.ToolName]string
}

func NewGlobalDisableList(reasons map[kernel.ToolName]string) *GlobalDisableList {
	if reasons == nil {
		reasons = map[kernel.ToolName]string{}
	}
	return &GlobalDisableList{disabled: reasons}
}

func (g *GlobalDisableList) reasonFor(name kernel.ToolName) (string, bool) {
	if g == nil {
		return "", false
	}
	reason, ok := g.disabled[name]
	return reason, ok
}

// resolveAvailability walks the chain GlobalDisabled -> PlanRestriction
// -> TenantOverride -> Default. Each rung either decides the outcome or
// falls through to the next; global disable always wins even over an
// explicit tenant override, since an operator-level kill switch must
// not be overridable by tenant admins.
func resolveAvailability(ctx context.Context, global *GlobalDisableList, overrides *store.ToolOverrideRepository, plan kernel.PlanTier, tenantID kernel.TenantID, d Descriptor) (Availability, error) {
	if reason, disabled := global.reasonFor(d.Name); disabled {
		return Availability{Enabled: false, Source: SourceGlobalDisabled, Reason: reason}, nil
	}

	if d.MinPlan != "" && !plan.Satisfies(d.MinPlan) {
		return Availability{Enabled: false, Source: SourcePlanRestriction, Reason: "requires " + string(d.MinPlan) + " plan or higher"}, nil
	}

	tenantOverrides, err := overrides.ListByTenant(ctx, tenantID)
	if err != nil {
		return Availability{}, err
	}
	if enabled, set := tenantOverrides[d.Name]; set {
		source := SourceTenantOverride
		if enabled {
			return Availability{Enabled: true, Source: source}, nil
		}
		return Availability{Enabled: false, Source: source, Reason: "disabled by tenant admin"}, nil
	}

	if !d.DefaultEnabled {
		return Availability{Enabled: false, Source: SourceDefault, Reason: "disabled by default; requires a tenant override to enable"}, nil
	}
	return Availability{Enabled: true, Source: SourceDefault}, nil
}
