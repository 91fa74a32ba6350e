package tools

import (
	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/oauthclient"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
)

// defaultMaxTenantBuckets bounds the rate limiter's LRU cache; at four
// categories per tenant this comfortably covers several thousand
// concurrently active tenants before eviction kicks in.
const defaultMaxTenantBuckets = 8192

// NewFromConfig wires a Dispatcher from the catalog and the store
// repositories the composition root already owns, the way
// oauthclient.NewFromConfig wires a Client from its own dependencies.
// cfg.GloballyDisabled (PIERRE_GLOBAL_DISABLED_TOOLS) becomes the
// operator kill switch every dispatch checks first.
func NewFromConfig(
	cfg config.ToolsConfig,
	providerRegistry *providers.Registry,
	oauthClient *oauthclient.Client,
	overrides *store.ToolOverrideRepository,
	usage *store.UsageCounterRepository,
) (*Dispatcher, error) {
	limiter, err := NewRateLimiter(defaultMaxTenantBuckets)
	if err != nil {
		return nil, err
	}
	registry := NewRegistry(Catalog())
	globalDisabled := make(map[kernel.ToolName]string, len(cfg.GloballyDisabled))
	for _, name := range cfg.GloballyDisabled {
		globalDisabled[kernel.NewToolName(name)] = "disabled via PIERRE_GLOBAL_DISABLED_TOOLS"
	}
	global := NewGlobalDisableList(globalDisabled)
	return NewDispatcher(registry, providerRegistry, oauthClient, overrides, usage, limiter, global), nil
}
