package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/extend/internal/extend"
	"github.com/mesh-intelligence/extend/pkg/store"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize extendctl storage",
		Long:  "Create the configuration, data and cache directories, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	// config.yaml was written by load; the data dir is created by the
	// sqlite backend and the cache dir by Clear.
	if err := os.MkdirAll(a.dataDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create data directory: %w", err))
	}
	err := a.withStore(func(s store.Store) error {
		return sysError(a.compiler(s).Clear())
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "extendctl initialized successfully")
	fmt.Fprintln(out, "  config:", a.configDir)
	fmt.Fprintln(out, "  data:  ", a.dataDir)
	fmt.Fprintln(out, "  cache: ", a.cacheDir)
	fmt.Fprintln(out, "  output:", extend.GeneratedDir(a.cacheDir))
	return nil
}
