package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/iam/login"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/store"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard users",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var tenantID, email, name, password string
	var isAdmin bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard user within an existing tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" || email == "" || password == "" {
				return errx.Validation("--tenant, --email and --password are required")
			}

			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			tenants := store.NewTenantRepository(env.store)
			if _, err := tenants.Get(context.Background(), kernel.NewTenantID(tenantID)); err != nil {
				return err
			}

			hash, err := login.NewHasher().Hash(password)
			if err != nil {
				return err
			}

			users := store.NewUserRepository(env.store)
			userID := kernel.NewUserID(store.NewID())
			if err := users.Create(context.Background(), store.User{
				ID:           userID,
				TenantID:     kernel.NewTenantID(tenantID),
				Email:        email,
				Name:         name,
				PasswordHash: hash,
				IsAdmin:      isAdmin,
			}); err != nil {
				return err
			}

			fmt.Printf("user created: id=%s tenant=%s email=%s admin=%t\n", userID, tenantID, email, isAdmin)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "owning tenant id")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant the dashboard admin flag")
	return cmd
}
