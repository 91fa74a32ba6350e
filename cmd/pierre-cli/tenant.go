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

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}
	cmd.AddCommand(newTenantCreateCmd())
	return cmd
}

func newTenantCreateCmd() *cobra.Command {
	var name, plan string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant and generate its wrapped encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return errx.Validation("--name is required")
			}
			planTier := kernel.PlanTier(plan)
			switch planTier {
			case kernel.PlanFree, kernel.PlanPro, kernel.PlanEnterprise:
			default:
				return errx.Validation("--plan must be one of free, pro, enterprise")
			}

			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			tenantID := kernel.NewTenantID(store.NewID())

			rawKey, err := crypto.GenerateTenantKey()
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(rawKey)
			wrapped, err := env.keyring.WrapTenantKey(tenantID, rawKey)
			if err != nil {
				return err
			}

			tenants := store.NewTenantRepository(env.store)
			if err := tenants.Create(context.Background(), store.Tenant{
				ID:         tenantID,
				Name:       name,
				Plan:       planTier,
				WrappedKey: wrapped,
			}); err != nil {
				return err
			}

			fmt.Printf("tenant created: id=%s name=%q plan=%s\n", tenantID, name, planTier)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tenant display name")
	cmd.Flags().StringVar(&plan, "plan", string(kernel.PlanFree), "subscription plan (free, pro, enterprise)")
	return cmd
}
