package extend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/extend/pkg/types"
)

// Identifier mapping of custom entities.
const (
	identifierType     = "integer"
	identifierStrategy = "AUTO"
)

// Builder derives the SchemaDescriptor of one entity from its field
// configurations and writes it back to the store.
type Builder struct {
	store     types.ConfigStore
	resolver  *Resolver
	hierarchy types.ClassHierarchy
	logger    *slog.Logger
}

// NewBuilder returns a Builder. Relation patches are recorded on resolver;
// the hierarchy resolves parent classes of Extend entities. A nil hierarchy
// leaves Parent and Inherit empty.
func NewBuilder(store types.ConfigStore, resolver *Resolver, hierarchy types.ClassHierarchy, logger *slog.Logger) *Builder {
	if hierarchy == nil {
		hierarchy = types.StaticHierarchy(nil)
	}
	return &Builder{
		store:     store,
		resolver:  resolver,
		hierarchy: hierarchy,
		logger:    orDiscard(logger),
	}
}

// Build rebuilds the schema of entity, advances the lifecycle of the entity
// and its extend fields, and records a relation patch for every owning link.
// Field writes are flushed before the entity write; the entity write is
// flushed before Build returns. entity is updated in place.
func (b *Builder) Build(ctx context.Context, entity *types.EntityConfig) error {
	className := entity.ClassName
	if className == "" {
		return types.ErrInvalidID
	}

	schemaType, entityName, mapping := b.baseMapping(entity)
	if entityName == "" {
		return fmt.Errorf("%w: %s has no extend_class", types.ErrInvalidData, className)
	}

	relation := make(map[string]string)
	if entity.Schema != nil {
		for k, v := range entity.Schema.Relation {
			relation[k] = v
		}
	}
	property := make(map[string]string)
	defaults := make(map[string]string)
	addRemove := make(map[string]types.AddRemove)

	fields, err := b.store.GetFieldConfigs(ctx, className)
	if err != nil {
		return fmt.Errorf("loading fields of %s: %w", className, err)
	}
	for _, field := range fields {
		if !field.Extend {
			continue
		}
		name := GeneratedFieldName(field.FieldName)

		if field.IsRelation() {
			relation[name] = field.FieldName
			if types.IsToManyType(field.FieldType) {
				marker := DefaultMarkerName(field.FieldName)
				defaults[marker] = marker
				addRemove[name] = types.AddRemove{Self: field.FieldName}
			}
		} else {
			property[name] = field.FieldName
			mapping.Fields[name] = types.ColumnMapping{
				Code:      name,
				Type:      field.FieldType,
				Nullable:  true,
				Length:    field.Length,
				Precision: field.Precision,
				Scale:     field.Scale,
			}
		}

		field.AdvanceState()
		if err := b.store.Persist(ctx, field); err != nil {
			return fmt.Errorf("persisting field %s: %w", field.ID(), err)
		}
		b.logger.Debug("field built", "field", field.ID().String(), "type", field.FieldType, "state", field.State)
	}
	if err := b.store.Flush(ctx); err != nil {
		return fmt.Errorf("flushing fields of %s: %w", className, err)
	}

	entity.AdvanceState()

	for i := range entity.Relations {
		link := &entity.Relations[i]
		if link.FieldID == nil {
			continue
		}
		link.Assign = true
		name := GeneratedFieldName(link.FieldID.FieldName)
		if ar, ok := addRemove[name]; ok && link.TargetFieldID != nil {
			ar.Target = link.TargetFieldID.FieldName
			addRemove[name] = ar
		}
		b.resolver.Resolve(link.TargetEntity, *link.FieldID)
	}

	schema := &types.SchemaDescriptor{
		Class:     className,
		Entity:    entityName,
		Type:      schemaType,
		Property:  property,
		Relation:  relation,
		Default:   defaults,
		AddRemove: addRemove,
		Doctrine:  map[string]types.EntityMapping{entityName: mapping},
	}
	if schemaType == types.SchemaTypeExtend {
		schema.Parent = b.hierarchy.Parent(className)
		if schema.Parent != "" {
			schema.Inherit = b.hierarchy.Parent(schema.Parent)
		}
	}
	entity.Schema = schema

	if err := b.store.Persist(ctx, entity); err != nil {
		return fmt.Errorf("persisting entity %s: %w", className, err)
	}
	if err := b.store.Flush(ctx); err != nil {
		return fmt.Errorf("flushing entity %s: %w", className, err)
	}

	b.logger.Info("schema built",
		"class", className,
		"type", schemaType,
		"properties", len(property),
		"relations", len(relation),
		"state", entity.State,
	)
	return nil
}

// baseMapping classifies the entity and returns its schema type, the class
// that carries the mapping, and the mapping block before fields are added.
func (b *Builder) baseMapping(entity *types.EntityConfig) (string, string, types.EntityMapping) {
	if IsCustomEntity(entity.ClassName) {
		return types.SchemaTypeCustom, entity.ClassName, types.EntityMapping{
			Type:  types.MappingTypeEntity,
			Table: TableName(entity.ClassName),
			Fields: map[string]types.ColumnMapping{
				IdentifierField: {
					Type:      identifierType,
					ID:        true,
					Generator: &types.Generator{Strategy: identifierStrategy},
				},
			},
		}
	}
	return types.SchemaTypeExtend, entity.ExtendClass, types.EntityMapping{
		Type:   types.MappingTypeMappedSuperclass,
		Fields: map[string]types.ColumnMapping{},
	}
}
