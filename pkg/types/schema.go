package types

// Schema types.
const (
	SchemaTypeCustom = "Custom" // fully generated entity with its own table
	SchemaTypeExtend = "Extend" // mapped superclass added to an existing class
)

// Mapping block types.
const (
	MappingTypeEntity           = "entity"
	MappingTypeMappedSuperclass = "mappedSuperclass"
)

// SchemaDescriptor is the derived description of how an entity's extended
// fields map onto storage. It is rebuilt on every regeneration and dumped
// for the code generator.
type SchemaDescriptor struct {
	Class  string `json:"class" yaml:"class"`
	Entity string `json:"entity" yaml:"entity"`
	Type   string `json:"type" yaml:"type"`

	// Property maps generated field names to original names of scalar fields.
	Property map[string]string `json:"property" yaml:"property"`
	// Relation maps generated field names to original names of relation fields.
	Relation map[string]string `json:"relation" yaml:"relation"`
	// Default holds one default_<name> marker per to-many side.
	Default map[string]string `json:"default" yaml:"default"`
	// AddRemove describes collection accessors of to-many sides.
	AddRemove map[string]AddRemove `json:"addremove" yaml:"addremove"`

	// Doctrine is the low-level mapping block keyed by entity class.
	Doctrine map[string]EntityMapping `json:"doctrine" yaml:"doctrine"`

	// Parent and Inherit are set for Extend schemas only.
	Parent  string `json:"parent,omitempty" yaml:"parent,omitempty"`
	Inherit string `json:"inherit,omitempty" yaml:"inherit,omitempty"`
}

// AddRemove names both ends of a to-many relation. Target is empty until
// the relation link names its paired field.
type AddRemove struct {
	Self   string `json:"self" yaml:"self"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
}

// EntityMapping is the persistence mapping of one class.
type EntityMapping struct {
	Type   string                   `json:"type" yaml:"type"`
	Table  string                   `json:"table,omitempty" yaml:"table,omitempty"`
	Fields map[string]ColumnMapping `json:"fields" yaml:"fields"`
}

// ColumnMapping is the mapping of one column. Scalar extend columns are
// always nullable and carry length, precision and scale as configured.
type ColumnMapping struct {
	Code      string     `json:"code,omitempty" yaml:"code,omitempty"`
	Type      string     `json:"type" yaml:"type"`
	ID        bool       `json:"id,omitempty" yaml:"id,omitempty"`
	Generator *Generator `json:"generator,omitempty" yaml:"generator,omitempty"`
	Nullable  bool       `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Length    *int       `json:"length,omitempty" yaml:"length"`
	Precision *int       `json:"precision,omitempty" yaml:"precision"`
	Scale     *int       `json:"scale,omitempty" yaml:"scale"`
}

// Generator is the identifier generation strategy of an id column.
type Generator struct {
	Strategy string `json:"strategy" yaml:"strategy"`
}

// Clone returns a deep copy of the descriptor. A nil receiver yields nil.
func (s *SchemaDescriptor) Clone() *SchemaDescriptor {
	if s == nil {
		return nil
	}
	c := *s
	c.Property = cloneStrings(s.Property)
	c.Relation = cloneStrings(s.Relation)
	c.Default = cloneStrings(s.Default)
	c.AddRemove = make(map[string]AddRemove, len(s.AddRemove))
	for k, v := range s.AddRemove {
		c.AddRemove[k] = v
	}
	c.Doctrine = make(map[string]EntityMapping, len(s.Doctrine))
	for k, v := range s.Doctrine {
		fields := make(map[string]ColumnMapping, len(v.Fields))
		for fk, fv := range v.Fields {
			fields[fk] = fv.clone()
		}
		v.Fields = fields
		c.Doctrine[k] = v
	}
	return &c
}

// MarshalYAML writes length, precision and scale on scalar columns, null
// when unset, and leaves them off the identifier column.
func (m ColumnMapping) MarshalYAML() (any, error) {
	type column ColumnMapping
	if !m.ID {
		return column(m), nil
	}
	return struct {
		Code      string     `yaml:"code,omitempty"`
		Type      string     `yaml:"type"`
		ID        bool       `yaml:"id"`
		Generator *Generator `yaml:"generator,omitempty"`
		Nullable  bool       `yaml:"nullable,omitempty"`
	}{m.Code, m.Type, m.ID, m.Generator, m.Nullable}, nil
}

func (m ColumnMapping) clone() ColumnMapping {
	if m.Generator != nil {
		g := *m.Generator
		m.Generator = &g
	}
	m.Length = cloneInt(m.Length)
	m.Precision = cloneInt(m.Precision)
	m.Scale = cloneInt(m.Scale)
	return m
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
