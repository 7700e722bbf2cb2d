package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/ssargent/rbxdom/pkg/storage"
)

func newStoreCmd() *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the local model store",
		Long: `Put, get, delete and list models in the store under the configured
data directory.

Examples:
  rbxdom store put model.rbxm --name lobby
  rbxdom store list
  rbxdom store get 2JkR0... -o lobby.rbxm
  rbxdom store delete 2JkR0...`,
	}
	storeCmd.AddCommand(newStorePutCmd(), newStoreGetCmd(), newStoreDeleteCmd(), newStoreListCmd())
	return storeCmd
}

func newStorePutCmd() *cobra.Command {
	putCmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a binary model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = filepath.Base(args[0])
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read model: %w", err)
			}

			return withStore(cmd, func(s *storage.ModelStore) error {
				info, err := s.Put(name, data)
				if err != nil {
					return err
				}
				cmd.Printf("%s\n", info.ID)
				return nil
			})
		},
	}
	putCmd.Flags().String("name", "", "Model name (defaults to the file name)")
	return putCmd
}

func newStoreGetCmd() *cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write a stored model to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid model id %q: %w", args[0], err)
			}

			return withStore(cmd, func(s *storage.ModelStore) error {
				info, data, err := s.Get(id)
				if err != nil {
					return err
				}
				if output == "" {
					output = info.Name
				}
				if output == "" {
					output = info.ID.String() + ".rbxm"
				}
				if err := os.WriteFile(output, data, 0644); err != nil {
					return fmt.Errorf("failed to write model: %w", err)
				}
				cmd.Printf("Wrote %s (%d bytes)\n", output, len(data))
				return nil
			})
		},
	}
	getCmd.Flags().StringP("output", "o", "", "Output file (defaults to the model name)")
	return getCmd
}

func newStoreDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid model id %q: %w", args[0], err)
			}
			return withStore(cmd, func(s *storage.ModelStore) error {
				if err := s.Delete(id); err != nil {
					return err
				}
				cmd.Printf("Deleted %s\n", id)
				return nil
			})
		},
	}
}

func newStoreListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return withStore(cmd, func(s *storage.ModelStore) error {
				models, err := s.List()
				if err != nil {
					return err
				}
				if format != "table" {
					if models == nil {
						models = []*storage.ModelInfo{}
					}
					return writeFormatted(cmd.OutOrStdout(), format, models)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "ID\tNAME\tSIZE\tINSTANCES\tCREATED\n")
				for _, m := range models {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", m.ID, m.Name, m.Size, m.Instances, m.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	listCmd.Flags().StringP("format", "f", "table", "Output format (table, yaml, json)")
	return listCmd
}

// withStore opens the model store under the configured data directory for
// the duration of fn.
func withStore(cmd *cobra.Command, fn func(*storage.ModelStore) error) error {
	a := appFrom(cmd)
	if err := os.MkdirAll(a.cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	s, err := storage.Open(a.cfg.DataDir, a.cfg.BinaryLimits())
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
