package main

import (
	"context"

	"github.com/pierre-platform/pierre/pkg/config"
	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/store"
)

// cliEnv holds the store and keyring every subcommand opens fresh —
// the CLI is a one-shot process, not a long-lived server, so there's
// no container to share.
type cliEnv struct {
	cfg     *config.Config
	store   *store.Store
	keyring *crypto.Keyring
}

func openEnv(ctx context.Context) (*cliEnv, error) {
	cfg := config.Load()

	s, err := store.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	keyring, err := crypto.NewKeyring(cfg.Crypto.MasterKeyB64, store.NewTenantRepository(s))
	if err != nil {
		s.Close()
		return nil, err
	}

	return &cliEnv{cfg: cfg, store: s, keyring: keyring}, nil
}

func (e *cliEnv) Close() {
	e.store.Close()
}
