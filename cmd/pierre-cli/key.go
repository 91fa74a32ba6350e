package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pierre-platform/pierre/pkg/crypto"
	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/store"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the master-key-wrapped per-tenant encryption keys",
	}
	cmd.AddCommand(newKeyRotateTenantKeyCmd())
	return cmd
}

func newKeyRotateTenantKeyCmd() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "rotate-tenant-key",
		Short: "Generate a new wrapped key for a tenant and re-seal every stored credential under it",
		Long: "Rotation replaces the tenant's raw symmetric key, not just its master-key\n" +
			"wrapping, so every existing upstream_credentials ciphertext must be\n" +
			"decrypted under the old key and re-encrypted under the new one in the\n" +
			"same pass — otherwise those rows become unreadable the moment the new\n" +
			"wrapped key is persisted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return errx.Validation("--tenant is required")
			}
			tid := kernel.NewTenantID(tenantID)

			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			tenants := store.NewTenantRepository(env.store)
			if _, err := tenants.Get(context.Background(), tid); err != nil {
				return err
			}

			creds := store.NewUpstreamCredentialRepository(env.store)
			existing, err := creds.ListByTenant(context.Background(), tid)
			if err != nil {
				return err
			}

			plaintexts := make([][2][]byte, len(existing))
			for i, c := range existing {
				access, err := env.keyring.Decrypt(context.Background(), tid, "access_token", c.AccessTokenCT)
				if err != nil {
					return err
				}
				var refresh []byte
				if len(c.RefreshTokenCT) > 0 {
					refresh, err = env.keyring.Decrypt(context.Background(), tid, "refresh_token", c.RefreshTokenCT)
					if err != nil {
						return err
					}
				}
				plaintexts[i] = [2][]byte{access, refresh}
			}

			rawKey, err := crypto.GenerateTenantKey()
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(rawKey)
			wrapped, err := env.keyring.WrapTenantKey(tid, rawKey)
			if err != nil {
				return err
			}
			if err := tenants.RotateKey(context.Background(), tid, wrapped); err != nil {
				return err
			}
			env.keyring.Invalidate(tid)

			for i, c := range existing {
				accessCT, err := env.keyring.Encrypt(context.Background(), tid, "access_token", plaintexts[i][0])
				if err != nil {
					return err
				}
				c.AccessTokenCT = accessCT
				if len(plaintexts[i][1]) > 0 {
					refreshCT, err := env.keyring.Encrypt(context.Background(), tid, "refresh_token", plaintexts[i][1])
					if err != nil {
						return err
					}
					c.RefreshTokenCT = refreshCT
				}
				if err := creds.Upsert(context.Background(), c); err != nil {
					return err
				}
			}

			fmt.Printf("tenant key rotated: tenant=%s credentials_reencrypted=%d\n", tenantID, len(existing))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id whose key should be rotated")
	return cmd
}
