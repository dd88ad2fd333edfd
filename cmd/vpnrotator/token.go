package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vpnrotator/internal/auth"
	"vpnrotator/internal/security"
)

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the control routes",
		Long:  `Mint a bearer token signed with API_JWT_SECRET for the mutating API routes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			subject, _ := cmd.Flags().GetString("subject")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if role != auth.RoleOperator && role != auth.RoleViewer {
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.GenerateJWT(subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("subject", "operator", "Token subject")
	cmd.Flags().String("role", auth.RoleOperator, "Token role (operator or viewer)")
	cmd.Flags().Duration("ttl", auth.DefaultTokenTTL, "Token lifetime")
	return cmd
}

// NewEncryptSecretCmd creates the encrypt-secret command.
func NewEncryptSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-secret <value>",
		Short: "Encrypt a value for report.api_key in settings.json",
		Long:  `Encrypt a value with SECRET_ENCRYPTION_KEY. The output can be stored as report.api_key.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			encrypted, err := security.EncryptSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encrypted)
			return nil
		},
	}
}

