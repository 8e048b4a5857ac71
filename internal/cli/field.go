package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/extend/pkg/store"
	"github.com/mesh-intelligence/extend/pkg/types"
)

func newFieldCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage field configurations",
	}
	cmd.AddCommand(newFieldAddCmd(a))
	cmd.AddCommand(newFieldDeleteCmd(a))
	return cmd
}

func newFieldAddCmd(a *app) *cobra.Command {
	var (
		length, precision, scale int
		noExtend                 bool
	)
	cmd := &cobra.Command{
		Use:   "add <class> <field> <type>",
		Short: "Add a scalar field to an entity",
		Long: `Add a scalar field to an entity and flag the entity for regeneration.

The type is passed to the mapping verbatim (string, integer, decimal, ...).
Relation fields are added with "relation add".`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			className, fieldName, fieldType := args[0], args[1], args[2]
			if types.IsRelationType(fieldType) {
				return fmt.Errorf("%w: %s is a relation type, use relation add", types.ErrInvalidData, fieldType)
			}
			return a.withStore(func(s store.Store) error {
				ctx := cmd.Context()
				e, err := liveEntity(ctx, s, className)
				if err != nil {
					return err
				}
				f := types.NewFieldConfig(className, fieldName, fieldType)
				if err := ensureAbsent(ctx, s, f.ID()); err != nil {
					return err
				}
				f.Extend = !noExtend
				if cmd.Flags().Changed("length") {
					f.Length = &length
				}
				if cmd.Flags().Changed("precision") {
					f.Precision = &precision
				}
				if cmd.Flags().Changed("scale") {
					f.Scale = &scale
				}
				e.MarkUpdated()
				if err := persist(ctx, s, f, e); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), f)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added field %s\n", f.ID())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&length, "length", 0, "column length")
	cmd.Flags().IntVar(&precision, "precision", 0, "decimal precision")
	cmd.Flags().IntVar(&scale, "scale", 0, "decimal scale")
	cmd.Flags().BoolVar(&noExtend, "no-extend", false, "register the field without adding it to the schema")
	return cmd
}

func newFieldDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <class> <field>",
		Short: "Mark a field deleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				ctx := cmd.Context()
				f, err := s.GetFieldConfig(ctx, args[0], args[1])
				if err != nil {
					return classify(err)
				}
				e, err := s.GetEntityConfig(ctx, args[0])
				if err != nil {
					return classify(err)
				}
				f.MarkDeleted()
				e.MarkUpdated()
				if err := persist(ctx, s, f, e); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted field %s\n", f.ID())
				return nil
			})
		},
	}
}

// liveEntity loads an entity that is not deleted.
func liveEntity(ctx context.Context, s types.ConfigStore, className string) (*types.EntityConfig, error) {
	e, err := s.GetEntityConfig(ctx, className)
	if err != nil {
		return nil, classify(err)
	}
	if e.IsDeleted {
		return nil, fmt.Errorf("%w: entity %s is deleted", types.ErrInvalidState, className)
	}
	return e, nil
}
