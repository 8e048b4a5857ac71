package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/extend/internal/extend"
	"github.com/mesh-intelligence/extend/internal/lock"
	"github.com/mesh-intelligence/extend/pkg/store"
)

func newRegenerateCmd(a *app) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "regenerate [class]",
		Short: "Rebuild schemas of extendable entities",
		Long: `Rebuild the schema descriptor of one entity, or of every extendable and
upgradeable entity when no class is given, and link both sides of their
relations. Generated artifacts in the cache directory are cleared before and
after the run. Only one regeneration per data directory runs at a time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			className := ""
			if len(args) == 1 {
				className = args[0]
			}

			if err := os.MkdirAll(a.dataDir, 0o755); err != nil {
				return sysError(fmt.Errorf("create data directory: %w", err))
			}
			l, err := lock.Acquire(filepath.Join(a.dataDir, lock.FileName))
			if err != nil {
				return classify(err)
			}
			defer l.Release()

			return a.withStore(func(s store.Store) error {
				c := a.compiler(s)
				res, err := c.Regenerate(cmd.Context(), className)
				if err != nil {
					return classify(err)
				}
				written := 0
				if dump {
					if written, err = c.Dump(cmd.Context()); err != nil {
						return classify(err)
					}
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Regenerated %d entities, assigned %d relation links (run %s)\n",
					len(res.Built), res.Assigned, res.RunID)
				if dump {
					printDumped(cmd, written, a.cacheDir)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "dump schemas after regenerating")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Write schema descriptors for the code generator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				n, err := a.compiler(s).Dump(cmd.Context())
				if err != nil {
					return classify(err)
				}
				printDumped(cmd, n, a.cacheDir)
				return nil
			})
		},
	}
}

func printDumped(cmd *cobra.Command, n int, cacheDir string) {
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No schemas to dump")
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dumped %d schemas to %s\n", n, extend.DumpPath(cacheDir))
}
