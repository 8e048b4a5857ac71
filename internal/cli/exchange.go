package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	internalstore "github.com/mesh-intelligence/extend/internal/store"
	"github.com/mesh-intelligence/extend/pkg/store"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export entity and field configurations as JSONL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				n, err := internalstore.Export(cmd.Context(), s, args[0])
				if err != nil {
					return classify(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import entity and field configurations from JSONL",
		Long: `Import an export file. Existing configurations with the same id are
replaced. Malformed lines are skipped and counted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				res, err := internalstore.Import(cmd.Context(), s, args[0])
				if err != nil {
					return classify(err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entities and %d fields (%d skipped)\n",
					res.Entities, res.Fields, res.Skipped)
				return nil
			})
		},
	}
}
