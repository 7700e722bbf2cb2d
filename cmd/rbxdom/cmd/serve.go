package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ssargent/rbxdom/pkg/api"
	"github.com/ssargent/rbxdom/pkg/config"
	"github.com/ssargent/rbxdom/pkg/storage"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Serve the model store over HTTP. Routes under /api/v1 require the
X-API-Key header; /metrics is open for Prometheus.

When the configured API key is "auto" or empty a key is generated for this run
and logged.

Examples:
  rbxdom serve
  rbxdom serve --port 9000 --bind 0.0.0.0 --api-key mysecretkey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			cfg := a.cfg

			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("bind") {
				cfg.Bind, _ = cmd.Flags().GetString("bind")
			}
			if cmd.Flags().Changed("api-key") {
				cfg.Security.APIKey, _ = cmd.Flags().GetString("api-key")
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cfg.Security.APIKey == "" || cfg.Security.APIKey == "auto" {
				key, err := config.GenerateSecureKey(32)
				if err != nil {
					return err
				}
				cfg.Security.APIKey = key
				a.logger.Warn().Str("api_key", key).Msg("no API key configured, generated one for this run")
			}

			db, err := a.database()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data dir: %w", err)
			}
			store, err := storage.Open(cfg.DataDir, cfg.BinaryLimits())
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return api.StartServer(ctx, store, db, api.ServerConfig{
				Bind:        cfg.Bind,
				Port:        cfg.Port,
				APIKey:      cfg.Security.APIKey,
				Compression: cfg.Compression(),
				Limits:      cfg.BinaryLimits(),
			}, a.logger)
		},
	}

	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
	serveCmd.Flags().String("data-dir", "", "Data directory for the model store")
	return serveCmd
}

