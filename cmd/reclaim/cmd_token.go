package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/identity"
	"github.com/ajitpratap0/reclaim/internal/models"
)

func tokenCmd() *cobra.Command {
	var (
		user  string
		email string
		role  string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("token: auth.jwt_secret (RECLAIM_AUTH_JWT_SECRET) is not set")
			}
			r := models.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("token: role must be %q or %q", models.RoleUser, models.RoleAdmin)
			}

			issuer := identity.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			tok, err := issuer.Issue(models.Principal{UserID: user, Email: email, Role: r})
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "user or admin")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
