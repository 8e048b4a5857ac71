package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/extend/pkg/store"
	"github.com/mesh-intelligence/extend/pkg/types"
)

func newRelationCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relation",
		Short: "Manage relations between entities",
	}
	cmd.AddCommand(newRelationAddCmd(a))
	return cmd
}

func newRelationAddCmd(a *app) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "add <class> <field> <type> <target-class> [target-field]",
		Short: "Add a relation field and link both entities",
		Long: `Add a relation field to an entity and record the relation on both sides.

The declaring side owns the relation. When target-field is given the paired
field is created on the target entity with the inverse type: manyToOne pairs
with oneToMany and manyToMany with manyToMany. Both entities are flagged for
regeneration.`,
		Example: `  extendctl relation add 'Extend\Entity\Invoice' lines oneToMany 'Extend\Entity\Line' invoice`,
		Args:    cobra.RangeArgs(4, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			className, fieldName, fieldType, targetClass := args[0], args[1], args[2], args[3]
			targetField := ""
			if len(args) == 5 {
				targetField = args[4]
			}
			if !types.IsRelationType(fieldType) {
				return fmt.Errorf("%w: %s is not a relation type (manyToOne, oneToMany, manyToMany)", types.ErrInvalidData, fieldType)
			}
			if key == "" {
				id, err := uuid.NewV7()
				if err != nil {
					return sysError(fmt.Errorf("generate relation key: %w", err))
				}
				key = id.String()
			}

			return a.withStore(func(s store.Store) error {
				ctx := cmd.Context()
				owner, err := liveEntity(ctx, s, className)
				if err != nil {
					return err
				}
				target, err := liveEntity(ctx, s, targetClass)
				if err != nil {
					return err
				}

				ownerField := types.NewFieldConfig(className, fieldName, fieldType)
				if err := ensureAbsent(ctx, s, ownerField.ID()); err != nil {
					return err
				}
				ownerID := ownerField.ID()
				configs := []any{ownerField}

				var targetID *types.ConfigID
				if targetField != "" {
					f := types.NewFieldConfig(targetClass, targetField, types.InverseRelationType(fieldType))
					if err := ensureAbsent(ctx, s, f.ID()); err != nil {
						return err
					}
					id := f.ID()
					targetID = &id
					configs = append(configs, f)
				}

				owner.AddRelation(types.RelationLink{
					Key:           key,
					FieldID:       &ownerID,
					TargetFieldID: targetID,
					TargetEntity:  targetClass,
					Owner:         true,
				})
				owner.MarkUpdated()
				if className == targetClass {
					// Self-referencing relation: both links live on one config.
					target = owner
				}
				target.AddRelation(types.RelationLink{
					Key:           inverseKey(key, className == targetClass),
					FieldID:       targetID,
					TargetFieldID: &ownerID,
					TargetEntity:  className,
				})
				target.MarkUpdated()
				configs = append(configs, owner, target)

				if err := persist(ctx, s, configs...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added relation %s (%s) -> %s\n", ownerID, fieldType, targetClass)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "relation key (default: generated UUID v7)")
	return cmd
}

// inverseKey returns the key of the target-side link. Links of one entity
// are keyed uniquely, so a self relation suffixes the inverse key.
func inverseKey(key string, self bool) string {
	if self {
		return key + ":inverse"
	}
	return key
}
