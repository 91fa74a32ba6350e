package kernel

type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

// ClientID identifies a registered downstream OAuth2 client (RFC 7591).
type ClientID string

func NewClientID(id string) ClientID { return ClientID(id) }
func (c ClientID) String() string    { return string(c) }
func (c ClientID) IsEmpty() bool     { return string(c) == "" }

// ProviderID identifies an upstream wearable/activity provider (strava,
// garmin, fitbit, whoop, coros, terra, synthetic).
type ProviderID string

func NewProviderID(id string) ProviderID { return ProviderID(id) }
func (p ProviderID) String() string      { return string(p) }
func (p ProviderID) IsEmpty() bool       { return string(p) == "" }

// ToolName identifies a tool in the dispatch registry. Stable, ASCII,
// snake_case.
type ToolName string

func NewToolName(name string) ToolName { return ToolName(name) }
func (t ToolName) String() string      { return string(t) }
func (t ToolName) IsEmpty() bool       { return string(t) == "" }

// PlanTier is a tenant's subscription tier, gating tool availability and
// rate-limit quota.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// rank returns the ordinal of a plan tier for minimum-plan comparisons.
func (p PlanTier) rank() int {
	switch p {
	case PlanEnterprise:
		return 2
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// Satisfies reports whether this plan tier meets or exceeds the minimum
// required tier.
func (p PlanTier) Satisfies(min PlanTier) bool {
	return p.rank() >= min.rank()
}
