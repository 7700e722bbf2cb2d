package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/rbxdom/pkg/binary"
	"github.com/ssargent/rbxdom/pkg/dom"
)

func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the chunks of a binary model",
		Long: `Print the header and every chunk of a binary model without building
an instance tree. Referents are shown as file-local ids.

Example:
  rbxdom inspect model.rbxm --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			a := appFrom(cmd)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open model: %w", err)
			}
			defer f.Close()

			model, err := binary.Inspect(f, a.cfg.BinaryLimits())
			if err != nil {
				return fmt.Errorf("failed to inspect %s: %w", args[0], err)
			}
			return writeFormatted(cmd.OutOrStdout(), format, model)
		},
	}
	inspectCmd.Flags().StringP("format", "f", "yaml", "Output format (yaml, json)")
	return inspectCmd
}

func newViewCmd() *cobra.Command {
	viewCmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Print the instance tree of a binary model",
		Long: `Decode a binary model and print its instances with referents replaced
by stable labels, so two views of the same content compare equal.

Example:
  rbxdom view model.rbxm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			a := appFrom(cmd)

			d, _, err := decodeFile(a, args[0])
			if err != nil {
				return err
			}
			return writeFormatted(cmd.OutOrStdout(), format, dom.NewDomViewer().ViewChildren(d))
		},
	}
	viewCmd.Flags().StringP("format", "f", "yaml", "Output format (yaml, json)")
	return viewCmd
}

func newRoundtripCmd() *cobra.Command {
	roundtripCmd := &cobra.Command{
		Use:   "roundtrip <in> <out>",
		Short: "Decode a binary model and encode it again",
		Long: `Decode a binary model and write it back out with the configured
compression. Metadata is carried over.

Examples:
  rbxdom roundtrip in.rbxm out.rbxm
  rbxdom roundtrip in.rbxm out.rbxm --compression zstd`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			compressionName, _ := cmd.Flags().GetString("compression")
			a := appFrom(cmd)

			compression := a.cfg.Compression()
			if compressionName != "" {
				c, err := binary.ParseCompression(compressionName)
				if err != nil {
					return err
				}
				compression = c
			}

			d, dec, err := decodeFile(a, args[0])
			if err != nil {
				return err
			}
			db, err := a.database()
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			enc := binary.NewEncoder(binary.EncodeOptions{
				Database:    db,
				Compression: compression,
				Metadata:    dec.Metadata(),
				Logger:      &a.logger,
			})
			if err := enc.Encode(&buf, d, d.Root().Children()); err != nil {
				return fmt.Errorf("failed to encode model: %w", err)
			}
			if err := os.WriteFile(args[1], buf.Bytes(), 0644); err != nil {
				return fmt.Errorf("failed to write model: %w", err)
			}

			cmd.Printf("Wrote %d instances (%d bytes, %s) to %s\n", d.Len()-1, buf.Len(), compression, args[1])
			return nil
		},
	}
	roundtripCmd.Flags().String("compression", "", "Chunk compression (lz4, zstd, none); defaults to the config")
	return roundtripCmd
}

// decodeFile decodes the model at path with the configured database and
// limits. Unknown properties are reported as warnings.
func decodeFile(a *app, path string) (*dom.WeakDom, *binary.Decoder, error) {
	db, err := a.database()
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	dec := binary.NewDecoder(binary.DecodeOptions{
		Database: db,
		Limits:   a.cfg.BinaryLimits(),
		Logger:   &a.logger,
	})
	d, err := dec.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for _, p := range dec.UnknownProperties() {
		a.logger.Warn().Str("class", p.Class).Str("property", p.Property).Msg("property not in reflection database")
	}
	return d, dec, nil
}
