// Package cli implements the extendctl command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/extend/internal/config"
	"github.com/mesh-intelligence/extend/internal/extend"
	"github.com/mesh-intelligence/extend/internal/lock"
	"github.com/mesh-intelligence/extend/internal/paths"
	"github.com/mesh-intelligence/extend/pkg/store"
	"github.com/mesh-intelligence/extend/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	cacheDir  string
	jsonMode  bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags rootFlags

	settings  *config.Settings
	configDir string
	dataDir   string
	cacheDir  string
	logger    *slog.Logger
}

// NewRootCmd creates the top-level "extendctl" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "extendctl",
		Short: "Compile extended entity configurations into schemas",
		Long: "extendctl manages extend configurations of entities and fields and\n" +
			"compiles them into schema descriptors for the code generator.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/extend)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/extend)")
	root.PersistentFlags().StringVar(&a.flags.cacheDir, "cache-dir", "", "cache directory (default: $XDG_CACHE_HOME/extend)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newEntityCmd(a))
	root.AddCommand(newFieldCmd(a))
	root.AddCommand(newRelationCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newRegenerateCmd(a))
	root.AddCommand(newDumpCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newImportCmd(a))
	root.AddCommand(newExportCmd(a))

	return root
}

// Execute runs the root command with os.Args and returns the process exit
// code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// load resolves directories, reads config.yaml and builds the logger.
func (a *app) load(stderr io.Writer) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	settings, err := config.Load(configDir)
	if err != nil {
		return sysError(err)
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, settings.DataDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	cacheDir, err := paths.ResolveCacheDir(a.flags.cacheDir, settings.CacheDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve cache dir: %w", err))
	}
	logger, err := settings.Logger(stderr)
	if err != nil {
		return err
	}

	a.settings = settings
	a.configDir = configDir
	a.dataDir = dataDir
	a.cacheDir = cacheDir
	a.logger = logger
	return nil
}

// openStore opens the configured backend. The caller must Close it.
func (a *app) openStore() (store.Store, error) {
	s, err := store.Open(a.settings.StoreConfig(a.dataDir))
	if err != nil {
		if errors.Is(err, types.ErrBackendEmpty) || errors.Is(err, types.ErrBackendUnknown) || errors.Is(err, types.ErrDSNRequired) {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return nil, sysError(fmt.Errorf("open store: %w", err))
	}
	return s, nil
}

// withStore opens the store, runs fn, and closes the store.
func (a *app) withStore(fn func(s store.Store) error) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// compiler returns a Compiler over s using the configured cache directory
// and class hierarchy.
func (a *app) compiler(s types.ConfigStore) *extend.Compiler {
	return extend.NewCompiler(s, a.cacheDir,
		extend.WithHierarchy(a.settings.ClassHierarchy()),
		extend.WithLogger(a.logger),
	)
}

// exitError carries the exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// sysError marks err as a system failure (exit code 2).
func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitSysError, err: err}
}

// userErrors are the failures caused by the invocation rather than the
// environment.
var userErrors = []error{
	types.ErrConfigNotFound,
	types.ErrInvalidID,
	types.ErrInvalidData,
	types.ErrInvalidState,
	types.ErrUnknownAttribute,
	lock.ErrLocked,
}

// classify returns err as a user error when it wraps one of userErrors and
// as a system error otherwise.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return sysError(err)
}

// exitCode maps an error returned by a command to the process exit code.
// Errors not marked as system failures are user errors.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}
