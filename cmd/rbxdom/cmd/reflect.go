package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/rbxdom/pkg/reflection"
)

func newReflectCmd() *cobra.Command {
	reflectCmd := &cobra.Command{
		Use:   "reflect <dump.json>",
		Short: "Convert a Roblox API dump into a reflection table",
		Long: `Read a Roblox JSON API dump and write the reflection table used by
the encoder and decoder. Point reflection.dump_path in the config at either
file to replace the embedded table.

Example:
  rbxdom reflect API-Dump.json -o table.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open dump: %w", err)
			}
			defer f.Close()

			db, err := reflection.LoadDump(f)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				out, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer out.Close()
				w = out
			}
			if err := db.WriteYAML(w); err != nil {
				return fmt.Errorf("failed to write reflection table: %w", err)
			}
			if output != "" {
				cmd.Printf("Wrote %d classes to %s\n", len(db.ClassNames()), output)
			}
			return nil
		},
	}
	reflectCmd.Flags().StringP("output", "o", "", "Write the table to a file instead of stdout")
	return reflectCmd
}
