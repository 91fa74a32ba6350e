// cmd/container.go
//
// Root composition root for pierre: owns infrastructure (DB, Redis) and
// wires every bounded context (C1-C8) into one process.
package main

import (
	"context"
	"os"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/iam/authmw"
	"github.com/pierre-platform/pierre/pkg/iam/login"
	"github.com/pierre-platform/pierre/pkg/jobx"
	"github.com/pierre-platform/pierre/pkg/jobx/jobxredis"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/oauth2as"
	"github.com/pierre-platform/pierre/pkg/oauthclient"
	"github.com/pierre-platform/pierre/pkg/protocol/a2a"
	"github.com/pierre-platform/pierre/pkg/protocol/mcp"
	"github.com/pierre-platform/pierre/pkg/protocol/rest"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
	"github.com/pierre-platform/pierre/pkg/tools"
	"github.com/redis/go-redis/v9"
)

// Container holds every wired dependency main() needs to mount routes
// and start background services. Unlike the teacher's per-module
// sub-containers, Pierre's modules are few enough and interdependent
// enough (C4 needs C1's keyring indirectly via store, C6 needs C5's
// oauthclient) to compose flat.
type Container struct {
	Config *config.Config

	Store *store.Store
	Redis *redis.Client

	Keyring     *crypto.Keyring
	Providers   *providers.Registry
	OAuthClient *oauthclient.Client
	OAuth2AS    *oauth2as.Service
	Login       *login.Service
	AuthMW      *authmw.Middleware

	ToolsRegistry *tools.Registry
	Dispatcher    *tools.Dispatcher

	MCP    *mcp.Handler
	A2A    *a2a.Handler
	Health *rest.HealthHandler
	Tools  *rest.ToolsHandler

	Bus        *notifx.Bus
	JobsClient *jobx.Client
}

// NewContainer wires the whole process. It is fatal-on-error for every
// precondition a misconfigured deploy would hit at boot (bad master
// key, unreachable DB) rather than failing requests one at a time
// later — the teacher's own initInfrastructure follows the same
// fail-fast-at-boot idiom.
func NewContainer(cfg *config.Config) *Container {
	logx.Info("initializing pierre container")

	c := &Container{Config: cfg}
	c.initStore()
	c.initRedis()
	c.initCrypto()
	c.initProviders()
	c.initOAuthClient()
	c.initLogin()
	c.initOAuth2AS()
	c.initAuthMW()
	c.initTools()
	c.initProtocolHandlers()
	c.initJobs()

	logx.Info("pierre container initialized")
	return c
}

func (c *Container) initStore() {
	s, err := store.Open(c.Config.Database)
	if err != nil {
		logx.Fatalf("failed to open store: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		logx.Fatalf("failed to migrate store: %v", err)
	}
	c.Store = s
	logx.Info("store connected and migrated")
}

func (c *Container) initRedis() {
	if !c.Config.Redis.Enabled() {
		logx.Warn("REDIS_HOST not set; oauthclient pending-state falls back to an in-process store")
		return
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("failed to connect to redis: %v", err)
	}
	c.Redis = rdb
	logx.Info("redis connected")
}

func (c *Container) initCrypto() {
	tenants := store.NewTenantRepository(c.Store)
	keyring, err := crypto.NewKeyring(c.Config.Crypto.MasterKeyB64, tenants)
	if err != nil {
		logx.Fatalf("failed to initialize keyring: %v", err)
	}
	c.Keyring = keyring
}

func (c *Container) initProviders() {
	c.Providers = providers.NewDefaultRegistry()
}

func (c *Container) initOAuthClient() {
	c.Bus = notifx.NewBus()
	c.OAuthClient = oauthclient.NewFromConfig(
		c.Config.Redis,
		c.Providers,
		store.NewUpstreamCredentialRepository(c.Store),
		c.Keyring,
		c.Bus,
		providerRedirectURI(),
	)
}

func (c *Container) initLogin() {
	svc, err := login.NewService(store.NewUserRepository(c.Store), c.Config.Session)
	if err != nil {
		logx.Fatalf("failed to initialize login service: %v", err)
	}
	c.Login = svc
}

func (c *Container) initOAuth2AS() {
	c.OAuth2AS = oauth2as.NewService(c.Store, c.Config.JWT, c.Config.OAuth2AS, c.Login, dashboardLoginURL())
	if err := c.OAuth2AS.Start(context.Background()); err != nil {
		logx.Fatalf("failed to start oauth2as: %v", err)
	}
}

func (c *Container) initAuthMW() {
	c.AuthMW = authmw.NewMiddleware(c.OAuth2AS.Issuer, store.NewAPIKeyRepository(c.Store), store.NewTenantRepository(c.Store))
}

func (c *Container) initTools() {
	c.ToolsRegistry = tools.NewRegistry(tools.Catalog())
	dispatcher, err := tools.NewFromConfig(
		c.Config.Tools,
		c.Providers,
		c.OAuthClient,
		store.NewToolOverrideRepository(c.Store),
		store.NewUsageCounterRepository(c.Store),
	)
	if err != nil {
		logx.Fatalf("failed to initialize tool dispatcher: %v", err)
	}
	c.Dispatcher = dispatcher
}

func (c *Container) initProtocolHandlers() {
	c.MCP = mcp.NewHandler(c.ToolsRegistry, c.Dispatcher)
	c.A2A = a2a.NewHandler(c.ToolsRegistry, c.Dispatcher)
	c.Health = rest.NewHealthHandler(c.Store, c.Providers)
	c.Tools = rest.NewToolsHandler(c.ToolsRegistry, c.Dispatcher)
}

func (c *Container) initJobs() {
	if c.Redis == nil {
		logx.Warn("jobx has no redis queue configured (REDIS_HOST unset); background outbox dispatch is disabled")
		return
	}
	queue := jobxredis.NewRedisQueue(c.Redis)
	client := jobx.NewClient(queue,
		jobx.WithQueues(c.Config.Jobx.Queues...),
		jobx.WithConcurrency(c.Config.Jobx.Concurrency),
		jobx.WithPollInterval(c.Config.Jobx.PollInterval),
		jobx.WithShutdownTimeout(c.Config.Jobx.ShutdownTimeout),
		jobx.WithDequeueTimeout(c.Config.Jobx.DequeueTimeout),
		jobx.WithDefaultRetryDelay(c.Config.Jobx.DefaultRetryDelay),
	)
	notifx.RegisterOutboxDispatcher(client, store.NewNotificationOutboxRepository(c.Store), c.Bus, c.Config.Jobx.PollInterval*10)
	c.OAuthClient.SetJobClient(client)
	oauthclient.RegisterRefreshRetryJob(client, c.OAuthClient)
	c.JobsClient = client
}

// StartBackgroundServices launches jobx's worker loop and seeds the
// outbox dispatcher's first run. Safe to call even when jobx has no
// redis queue — it's then a no-op, matching initJobs's own fallback.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	if c.JobsClient == nil {
		return
	}
	if err := notifx.SeedOutboxDispatcher(ctx, c.JobsClient); err != nil {
		logx.WithError(err).Warn("failed to seed outbox dispatcher job")
	}
	go func() {
		if err := c.JobsClient.Start(ctx); err != nil && ctx.Err() == nil {
			logx.WithError(err).Error("jobx client stopped unexpectedly")
		}
	}()
}

func (c *Container) Cleanup() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logx.Errorf("error closing store: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("error closing redis: %v", err)
		}
	}
}

func providerRedirectURI() string {
	return envOrDefault("PIERRE_OAUTH_REDIRECT_URI", "http://localhost:8080/connect/callback")
}

func dashboardLoginURL() string {
	return envOrDefault("PIERRE_LOGIN_URL", "/login")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
