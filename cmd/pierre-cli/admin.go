package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pierre-platform/pierre/pkg/errx"
	"github.com/pierre-platform/pierre/pkg/kernel"
	"github.com/pierre-platform/pierre/pkg/oauth2as"
	"github.com/pierre-platform/pierre/pkg/store"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Issue or revoke platform tokens outside the normal OAuth2 grant flows",
	}
	cmd.AddCommand(newAdminIssueJWTCmd())
	cmd.AddCommand(newAdminRevokeJWTCmd())
	return cmd
}

func newAdminIssueJWTCmd() *cobra.Command {
	var tenantID, userID, scopeCSV string

	cmd := &cobra.Command{
		Use:   "issue-jwt",
		Short: "Mint an admin-scoped access token for a tenant",
		Long: "Mints an RS256 access token carrying admin:* scope, for use against\n" +
			"REST /admin/* routes or as a bootstrap credential before any dashboard\n" +
			"user exists. Bypasses the authorization-code/client-credentials grants\n" +
			"entirely — this is an operator escape hatch, not a client-facing flow.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return errx.Validation("--tenant is required")
			}
			scopes := []string{"admin:*"}
			if scopeCSV != "" {
				scopes = splitCSV(scopeCSV)
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

			keys := oauth2as.NewKeyManager(store.NewSigningKeyRepository(env.store), env.cfg.JWT)
			if err := keys.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			issuer := oauth2as.NewTokenIssuer(keys, env.cfg.JWT)

			token, expiresAt, err := issuer.IssueAccessToken(
				kernel.NewUserID(userID), kernel.NewTenantID(tenantID), kernel.NewClientID("pierre-cli"), scopes,
			)
			if err != nil {
				return err
			}

			fmt.Println(token)
			fmt.Printf("expires_at=%s scopes=%s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"), strings.Join(scopes, ","))
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id this token is scoped to")
	cmd.Flags().StringVar(&userID, "user", "", "subject user id (optional — empty for a tenant-level admin token)")
	cmd.Flags().StringVar(&scopeCSV, "scopes", "", "comma-separated scope list (default admin:*)")
	return cmd
}

func newAdminRevokeJWTCmd() *cobra.Command {
	var refreshToken string

	cmd := &cobra.Command{
		Use:   "revoke-jwt",
		Short: "Revoke a refresh token, ending its session",
		Long: "Access tokens are stateless RS256 JWTs and expire on their own short\n" +
			"TTL; this revokes the refresh token behind a session so it cannot mint\n" +
			"further access tokens, the same operation /oauth2/revoke performs over\n" +
			"HTTP (RFC 7009).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if refreshToken == "" {
				return errx.Validation("--refresh-token is required")
			}
			env, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			refreshToks := store.NewRefreshTokenRepository(env.store)
			if err := refreshToks.Revoke(context.Background(), oauth2as.HashToken(refreshToken)); err != nil {
				return err
			}
			fmt.Println("revoked")
			return nil
		},
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "raw refresh token to revoke")
	return cmd
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
