// cmd/pierre-stdio is the MCP stdio transport entrypoint: a thin binary
// a desktop client spawns as a subprocess, wiring pkg/protocol/mcp/stdio's
// length-delimited bridge to os.Stdin/os.Stdout. Unlike cmd/pierre
// (servier.go), a stdio subprocess serves exactly one already-known
// client over one connection, so there is no HTTP listener, no
// oauth2as authorization server, and no background jobx/notifx
// dispatch — only the pieces mcp.Handler's tool dispatch needs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/iam/authmw"
	"github.com/pierre-platform/pierre/pkg/logx"
	"github.com/pierre-platform/pierre/pkg/notifx"
	"github.com/pierre-platform/pierre/pkg/oauthclient"
	"github.com/pierre-platform/pierre/pkg/protocol/mcp"
	"github.com/pierre-platform/pierre/pkg/protocol/mcp/stdio"
	"github.com/pierre-platform/pierre/pkg/providers"
	"github.com/pierre-platform/pierre/pkg/store"
	"github.com/pierre-platform/pierre/pkg/tools"
)

func main() {
	cfg := config.Load()
	logx.SetOutput(os.Stderr)
	logx.SetLevel(logx.LevelWarn) // stdout is the JSON-RPC channel; keep stderr quiet by default

	apiKey := os.Getenv("PIERRE_API_KEY")
	if apiKey == "" {
		logx.Fatalf("PIERRE_API_KEY is required to authenticate a stdio session")
	}

	s, err := store.Open(cfg.Database)
	if err != nil {
		logx.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(context.Background()); err != nil {
		logx.Fatalf("failed to migrate store: %v", err)
	}

	tenants := store.NewTenantRepository(s)
	keyring, err := crypto.NewKeyring(cfg.Crypto.MasterKeyB64, tenants)
	if err != nil {
		logx.Fatalf("failed to initialize keyring: %v", err)
	}

	mw := authmw.NewMiddleware(nil, store.NewAPIKeyRepository(s), tenants)
	authCtx, ok := mw.AuthenticateHTTP(&http.Request{Header: http.Header{"Authorization": []string{"Bearer " + apiKey}}})
	if !ok {
		logx.Fatalf("PIERRE_API_KEY did not authenticate")
	}

	registry := providers.NewDefaultRegistry()
	bus := notifx.NewBus()
	// redirectURI is only consulted by InitiateConnection/HandleCallback,
	// which a stdio session never calls — connecting an upstream provider
	// is a dashboard (browser redirect) operation, not a tool dispatch.
	oauthClient := oauthclient.NewFromConfig(
		cfg.Redis, registry, store.NewUpstreamCredentialRepository(s), keyring, bus, "",
	)

	dispatcher, err := tools.NewFromConfig(
		cfg.Tools, registry, oauthClient, store.NewToolOverrideRepository(s), store.NewUsageCounterRepository(s),
	)
	if err != nil {
		logx.Fatalf("failed to initialize tool dispatcher: %v", err)
	}
	toolsRegistry := tools.NewRegistry(tools.Catalog())

	handler := mcp.NewHandler(toolsRegistry, dispatcher)
	bridge := stdio.NewBridge(handler, authCtx)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := bridge.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logx.Fatalf("stdio bridge error: %v", err)
	}
}
