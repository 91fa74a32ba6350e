package oauthclient

import (
	"github.com/redis/go-redis/v9"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
)

// NewFromConfig wires a Client the way cmd/pierre's composition root
// does: a Redis-backed StateStore when REDIS_HOST is set, falling back
// to an in-process map with a warning otherwise. A single-node deploy
// survives the fallback; a multi-node one needs Redis so a callback
// landing on a different instance than the initiate request can still
// find its pending state.
func NewFromConfig(
	redisCfg config.RedisConfig,
	registry *providers.Registry,
	creds *store.UpstreamCredentialRepository,
	keyring *crypto.Keyring,
	bus *notifx.Bus,
	redirectURI string,
) *Client {
	var states StateStore
	if redisCfg.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Address(),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		states = NewRedisStateStore(rdb)
	} else {
		logx.Warn("oauthclient: REDIS_HOST not set, using in-process pending-state store; connect flows will not survive a restart or work across multiple instances")
		states = NewMemoryStateStore()
	}

	return New(registry, creds, keyring, states, bus, redisCfg.StateTTL, redirectURI)
}
