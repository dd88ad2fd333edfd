package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vpnrotator/internal/app/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "vpnrotator version %s\n", info.BuildVersion)
			if info.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", info.Commit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", info.BuiltAt)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:     %s\n", info.GoVersion)
		},
	}
}
