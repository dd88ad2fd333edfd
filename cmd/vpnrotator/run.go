package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vpnrotator/internal/app"
)

func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("seed", 0, "Catalog seed (0 uses the settings value, or a random seed)")
	cmd.Flags().Int("catalog-size", 0, "Number of proxies to generate (0 uses the settings value)")
}

func optionsFromFlags(cmd *cobra.Command) (app.Options, error) {
	var opts app.Options
	var err error

	if opts.Seed, err = cmd.Flags().GetUint64("seed"); err != nil {
		return opts, err
	}
	if opts.CatalogSize, err = cmd.Flags().GetInt("catalog-size"); err != nil {
		return opts, err
	}
	if opts.Production, err = cmd.Flags().GetBool("production"); err != nil {
		return opts, err
	}
	// An unset flag leaves the port to BACKEND_PORT and the default.
	if flag := cmd.Flags().Lookup("backend-port"); flag != nil && flag.Changed {
		if opts.BackendPort, err = cmd.Flags().GetInt("backend-port"); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the rotation controller behind the HTTP API",
		Long: `Run the rotation controller and expose it over HTTP, WebSocket and GraphQL.
--backend-port wins over BACKEND_PORT when both are given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := optionsFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.Serve(ctx, opts)
		},
	}

	cmd.Flags().Int("backend-port", app.DefaultBackendPort, "Port for the API server")
	addCatalogFlags(cmd)
	return cmd
}

// NewTUICmd creates the tui command.
func NewTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the rotation controller with a terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := optionsFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return app.RunTUI(ctx, opts)
		},
	}

	addCatalogFlags(cmd)
	return cmd
}
