package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/extend/internal/extend"
	"github.com/mesh-intelligence/extend/pkg/store"
	"github.com/mesh-intelligence/extend/pkg/types"
)

func newEntityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage entity configurations",
	}
	cmd.AddCommand(newEntityAddCmd(a))
	cmd.AddCommand(newEntityListCmd(a))
	cmd.AddCommand(newEntityShowCmd(a))
	cmd.AddCommand(newEntityDeleteCmd(a))
	return cmd
}

func newEntityAddCmd(a *app) *cobra.Command {
	var (
		isExtend    bool
		upgradeable bool
		extendClass string
	)
	cmd := &cobra.Command{
		Use:   "add <class>",
		Short: "Register an entity",
		Long: `Register an entity configuration.

Classes in the Extend\Entity\ namespace are custom entities with their own
table. Any other class is extended through a generated mapped superclass
named by --extend-class.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			className := args[0]
			if !extend.IsCustomEntity(className) && isExtend && extendClass == "" {
				return fmt.Errorf("%w: --extend-class is required for %s", types.ErrInvalidData, className)
			}
			return a.withStore(func(s store.Store) error {
				ctx := cmd.Context()
				if err := ensureAbsent(ctx, s, types.EntityID(className)); err != nil {
					return err
				}
				e := types.NewEntityConfig(className)
				e.IsExtend = isExtend
				e.Upgradeable = upgradeable
				e.ExtendClass = extendClass
				if err := persist(ctx, s, e); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), e)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added entity %s\n", className)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&isExtend, "extend", true, "the entity carries extend fields")
	cmd.Flags().BoolVar(&upgradeable, "upgradeable", true, "the compiler may regenerate the entity")
	cmd.Flags().StringVar(&extendClass, "extend-class", "", "generated mapped superclass of a non-custom entity")
	return cmd
}

func newEntityListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List entity configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				entities, err := s.GetEntityConfigs(cmd.Context())
				if err != nil {
					return classify(err)
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), entities)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CLASS\tSTATE\tEXTEND\tUPGRADEABLE\tSCHEMA")
				for _, e := range entities {
					schema := "-"
					if e.Schema != nil {
						schema = e.Schema.Type
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", e.ClassName, e.State, e.IsExtend, e.Upgradeable, schema)
				}
				return w.Flush()
			})
		},
	}
}

// entityView is the output of entity show.
type entityView struct {
	Entity *types.EntityConfig  `json:"entity" yaml:"entity"`
	Fields []*types.FieldConfig `json:"fields" yaml:"fields"`
}

func newEntityShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <class>",
		Short: "Show an entity configuration and its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				ctx := cmd.Context()
				e, err := s.GetEntityConfig(ctx, args[0])
				if err != nil {
					return classify(err)
				}
				fields, err := s.GetFieldConfigs(ctx, args[0])
				if err != nil {
					return classify(err)
				}
				return a.print(cmd.OutOrStdout(), entityView{Entity: e, Fields: fields})
			})
		},
	}
}

func newEntityDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <class>",
		Short: "Mark an entity and its fields deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				ctx := cmd.Context()
				e, err := s.GetEntityConfig(ctx, args[0])
				if err != nil {
					return classify(err)
				}
				fields, err := s.GetFieldConfigs(ctx, args[0])
				if err != nil {
					return classify(err)
				}
				for _, f := range fields {
					f.MarkDeleted()
					if err := s.Persist(ctx, f); err != nil {
						return classify(err)
					}
				}
				e.MarkDeleted()
				if err := persist(ctx, s, e); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted entity %s (%d fields)\n", e.ClassName, len(fields))
				return nil
			})
		},
	}
}

// ensureAbsent fails with ErrInvalidData when id already has a configuration.
func ensureAbsent(ctx context.Context, s types.ConfigStore, id types.ConfigID) error {
	ok, err := s.HasConfig(ctx, id)
	if err != nil {
		return classify(err)
	}
	if ok {
		return fmt.Errorf("%w: %s already exists", types.ErrInvalidData, id)
	}
	return nil
}

// persist stages every config and flushes.
func persist(ctx context.Context, s types.ConfigStore, configs ...any) error {
	for _, c := range configs {
		if err := s.Persist(ctx, c); err != nil {
			return classify(err)
		}
	}
	return classify(s.Flush(ctx))
}
