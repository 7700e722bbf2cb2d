package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/rbxdom/pkg/config"
)

func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with a generated API key",
		Long: `Create a configuration file with a freshly generated API key.

The file is written to --config, or ~/.config/rbxdom/config.yaml. Use a .toml
extension to write TOML instead of YAML.

Examples:
  rbxdom init
  rbxdom init --config ./rbxdom.toml --data-dir ./models`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{configAnnotation: configOptional},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			force, _ := cmd.Flags().GetBool("force")
			a := appFrom(cmd)

			if config.ConfigExists(a.configPath) && !force {
				cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", a.configPath)
				return nil
			}

			cfg, err := config.BootstrapConfig(a.configPath, dataDir)
			if err != nil {
				return err
			}

			cmd.Printf("Configuration created at %s\n", a.configPath)
			cmd.Printf("Data directory: %s\n", cfg.DataDir)
			cmd.Printf("API key: %s\n", cfg.Security.APIKey)
			return nil
		},
	}

	initCmd.Flags().String("data-dir", "", "Data directory for the model store")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	return initCmd
}
