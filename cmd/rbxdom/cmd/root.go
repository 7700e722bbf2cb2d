package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ssargent/rbxdom/pkg/config"
	"github.com/ssargent/rbxdom/pkg/logging"
	"github.com/ssargent/rbxdom/pkg/reflection"
)

type appKey struct{}

// Commands annotated with configOptional run with defaults when the config
// file does not exist yet.
const (
	configAnnotation = "config"
	configOptional   = "optional"
)

// app is the configuration and logger resolved before every command runs.
type app struct {
	cfg        *config.Config
	configPath string
	logger     zerolog.Logger
}

// NewRootCmd builds the rbxdom command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rbxdom",
		Short: "rbxdom - Roblox binary model toolkit",
		Long: `rbxdom reads and writes the Roblox binary model format.

It can inspect files chunk by chunk, view their instance tree, re-encode them,
convert API dumps into reflection tables, and keep models in a local store that
can be served over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("log-level")

			a, err := loadApp(configPath, cmd.Annotations[configAnnotation] == configOptional)
			if err != nil {
				return err
			}
			if logLevel != "" {
				a.cfg.Logging.Level = logLevel
			}
			a.logger = logging.NewWithWriter("rbxdom", a.cfg.Logging, cmd.ErrOrStderr())

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appKey{}, a))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default ~/.config/rbxdom/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")

	rootCmd.AddCommand(
		newInitCmd(),
		newInspectCmd(),
		newViewCmd(),
		newRoundtripCmd(),
		newReflectCmd(),
		newStoreCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// loadApp reads the config at path, or the default config file when path is
// empty. A missing default file falls back to built-in defaults, as does any
// missing file when optional is set.
func loadApp(path string, optional bool) (*app, error) {
	explicit := path != ""
	if !explicit {
		path = config.GetDefaultConfigPath()
	}

	a := &app{configPath: path}
	if (optional || !explicit) && !config.ConfigExists(path) {
		a.cfg = config.DefaultConfig()
		return a, nil
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg
	return a, nil
}

func appFrom(cmd *cobra.Command) *app {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		panic("rbxdom: command run without application context")
	}
	return a
}

// database returns the configured reflection database.
func (a *app) database() (*reflection.Database, error) {
	if a.cfg.Reflection.DumpPath == "" {
		return reflection.Default(), nil
	}
	db, err := reflection.Load(a.cfg.Reflection.DumpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load reflection database: %w", err)
	}
	a.logger.Debug().Str("path", a.cfg.Reflection.DumpPath).Str("version", db.Version).Msg("loaded reflection database")
	return db, nil
}
