package types

// Relation field types. Every other field type is a scalar column type
// passed through to the mapping verbatim.
const (
	FieldTypeOneToMany  = "oneToMany"
	FieldTypeManyToOne  = "manyToOne"
	FieldTypeManyToMany = "manyToMany"
)

// IsRelationType reports whether fieldType is one of the relation types.
func IsRelationType(fieldType string) bool {
	switch fieldType {
	case FieldTypeOneToMany, FieldTypeManyToOne, FieldTypeManyToMany:
		return true
	}
	return false
}

// IsToManyType reports whether a relation field holds a collection.
func IsToManyType(fieldType string) bool {
	return fieldType == FieldTypeOneToMany || fieldType == FieldTypeManyToMany
}

// InverseRelationType returns the field type of the paired side of a
// relation: manyToOne pairs with oneToMany and manyToMany with itself.
func InverseRelationType(fieldType string) string {
	switch fieldType {
	case FieldTypeManyToOne:
		return FieldTypeOneToMany
	case FieldTypeOneToMany:
		return FieldTypeManyToOne
	default:
		return fieldType
	}
}

// RelationLink describes one relation instance stored on an entity config.
type RelationLink struct {
	// Key identifies the link within the entity's relation list.
	Key string `json:"key" yaml:"key"`

	// FieldID is the field on this entity that carries the relation.
	// Nil when this entity is only referenced and declares no field.
	FieldID *ConfigID `json:"field_id" yaml:"field_id"`

	// TargetFieldID is the paired field on the target entity, if any.
	TargetFieldID *ConfigID `json:"target_field_id" yaml:"target_field_id"`

	// TargetEntity is the class name on the other side.
	TargetEntity string `json:"target_entity" yaml:"target_entity"`

	// Owner is true when this side defines the physical column or join.
	Owner bool `json:"owner" yaml:"owner"`

	// Assign is set once the compiler has confirmed the pairing.
	Assign bool `json:"assign" yaml:"assign"`
}

// References reports whether the link's paired field is fieldID.
func (l RelationLink) References(fieldID ConfigID) bool {
	return l.TargetFieldID != nil && l.TargetFieldID.Equal(fieldID)
}
