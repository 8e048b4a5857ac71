package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/extend/pkg/store"
	"github.com/mesh-intelligence/extend/pkg/types"
)

// attributed is implemented by entity and field configurations.
type attributed interface {
	Get(attr string) (any, error)
	Set(attr string, value any) error
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write configuration attributes",
		Long: `Read and write single attributes of an entity or field configuration.

An id is a class name for entities or Class::field for fields.

Entity attributes: is_extend, upgradeable, state, is_deleted, extend_class,
schema, relation. Field attributes: extend, length, precision, scale, state,
is_deleted.`,
	}
	cmd.AddCommand(newConfigGetCmd(a))
	cmd.AddCommand(newConfigSetCmd(a))
	return cmd
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <attr>",
		Short: "Print one attribute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				c, _, err := loadAttributed(cmd, s, args[0])
				if err != nil {
					return err
				}
				v, err := c.Get(args[1])
				if err != nil {
					return err
				}
				switch v := v.(type) {
				case string, bool:
					fmt.Fprintln(cmd.OutOrStdout(), v)
					return nil
				case *int:
					if v == nil {
						fmt.Fprintln(cmd.OutOrStdout(), "null")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), *v)
					}
					return nil
				default:
					return a.print(cmd.OutOrStdout(), v)
				}
			})
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <attr> <value>",
		Short: "Assign one scalar attribute",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(s store.Store) error {
				c, id, err := loadAttributed(cmd, s, args[0])
				if err != nil {
					return err
				}
				if err := c.Set(args[1], args[2]); err != nil {
					return err
				}
				if err := persist(cmd.Context(), s, c); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s %s\n", id, args[1])
				return nil
			})
		},
	}
}

// loadAttributed parses id and loads the matching configuration.
func loadAttributed(cmd *cobra.Command, s types.ConfigStore, raw string) (attributed, types.ConfigID, error) {
	id, err := types.ParseConfigID(raw)
	if err != nil {
		return nil, id, fmt.Errorf("%w: %q", err, raw)
	}
	if id.IsField() {
		f, err := s.GetFieldConfig(cmd.Context(), id.ClassName, id.FieldName)
		if err != nil {
			return nil, id, classify(err)
		}
		return f, id, nil
	}
	e, err := s.GetEntityConfig(cmd.Context(), id.ClassName)
	if err != nil {
		return nil, id, classify(err)
	}
	return e, id, nil
}
