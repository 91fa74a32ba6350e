package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/oauthclient"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
)

// Call is one dispatch request, built identically by the MCP, A2A, and
// REST adapters from their own wire formats.
type Call struct {
	Auth       kernel.AuthContext
	ToolName   kernel.ToolName
	ProviderID kernel.ProviderID
	Args       json.RawMessage
}

// Result is a successful dispatch's output.
type Result struct {
	Tool kernel.ToolName
	Data json.RawMessage
}

// Dispatcher implements spec §4.6's seven-step dispatch algorithm:
// lookup, availability, schema validation, rate limit, token
// resolution, handler execution, usage recording.
type Dispatcher struct {
	registry    *Registry
	providers   *providers.Registry
	oauthClient *oauthclient.Client
	overrides   *store.ToolOverrideRepository
	usage       *store.UsageCounterRepository
	limiter     *RateLimiter
	global      *GlobalDisableList
}

func NewDispatcher(
	registry *Registry,
	providerRegistry *providers.Registry,
	oauthClient *oauthclient.Client,
	overrides *store.ToolOverrideRepository,
	usage *store.UsageCounterRepository,
	limiter *RateLimiter,
	global *GlobalDisableList,
) *Dispatcher {
	return &Dispatcher{
		registry:    registry,
		providers:   providerRegistry,
		oauthClient: oauthClient,
		overrides:   overrides,
		usage:       usage,
		limiter:     limiter,
		global:      global,
	}
}

// Dispatch runs the full algorithm for one call. Every returned error is
// an *errx.Error carrying the right Type for its protocol adapter to
// translate into its own error envelope (MCP error object, A2A failure
// part, REST 4xx body).
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (*Result, error) {
	descriptor, err := d.registry.Get(call.ToolName)
	if err != nil {
		return nil, err
	}

	avail, err := resolveAvailability(ctx, d.global, d.overrides, call.Auth.Plan, call.Auth.TenantID, descriptor)
	if err != nil {
		return nil, err
	}
	if !avail.Enabled {
		return nil, toolErrors.New(ErrToolDisabled).
			WithDetail("tool_name", descriptor.Name.String()).
			WithDetail("source", string(avail.Source)).
			WithDetail("reason", avail.Reason)
	}

	if len(descriptor.RequiredScopes) > 0 && !call.Auth.HasAllScopes(descriptor.RequiredScopes...) {
		return nil, toolErrors.New(ErrScopeMissing).
			WithDetail("tool_name", descriptor.Name.String()).
			WithDetail("required_scopes", descriptor.RequiredScopes)
	}

	if problems := Validate(descriptor.InputSchema, call.Args); len(problems) > 0 {
		detail := make([]map[string]string, 0, len(problems))
		for _, p := range problems {
			detail = append(detail, map[string]string{"path": p.Path, "reason": p.Reason})
		}
		return nil, toolErrors.New(ErrInvalidArguments).WithDetail("problems", detail)
	}

	if allowed, retryAfter := d.limiter.Allow(call.Auth.TenantID, call.Auth.Plan, descriptor.Category); !allowed {
		return nil, toolErrors.New(ErrRateLimited).WithDetail("retry_after_ms", retryAfter.Milliseconds())
	}

	inv := Invocation{
		TenantID: call.Auth.TenantID,
		Args:     call.Args,
	}
	if call.Auth.UserID != nil {
		inv.UserID = *call.Auth.UserID
	}

	if descriptor.RequiredCapability != 0 {
		if call.ProviderID.IsEmpty() {
			return nil, toolErrors.New(ErrProviderMissing)
		}
		provider, err := d.providers.Get(call.ProviderID)
		if err != nil {
			return nil, err
		}
		accessToken, err := d.oauthClient.AccessToken(ctx, call.Auth.TenantID, inv.UserID, call.ProviderID)
		if err != nil {
			return nil, toolErrors.New(ErrProviderAuthRequired).
				WithDetail("provider_id", call.ProviderID.String()).
				WithDetail("cause", err.Error())
		}
		inv.ProviderID = call.ProviderID
		inv.Provider = provider
		inv.AccessToken = accessToken
	}

	data, err := descriptor.Handler(ctx, inv)
	if err != nil {
		return nil, err
	}

	if d.usage != nil {
		bucket := time.Now().UTC().Truncate(time.Hour).Format(time.RFC3339)
		if _, err := d.usage.IncrementAndGet(ctx, call.Auth.TenantID, descriptor.Name, bucket, 1); err != nil {
			return nil, err
		}
	}

	return &Result{Tool: descriptor.Name, Data: data}, nil
}
