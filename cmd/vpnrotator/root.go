package main

import (
	"github.com/spf13/cobra"

	"vpnrotator/internal/app/version"
)

// NewRootCmd creates the vpnrotator command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vpnrotator",
		Short: "Simulated VPN proxy rotation manager",
		Long: `vpnrotator keeps a catalog of synthetic proxy servers, simulates connecting
to one of them and rotates to a different proxy on a timer or on demand.
Each new connection gets a security report from Gemini, or a fallback report
when no API key is configured.

It does not change any operating system network settings.`,
		Version:       version.Get().BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().Bool("production", false, "Run in production mode (info level logging)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewTUICmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewEncryptSecretCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}
