package types

import (
	"fmt"

	"github.com/spf13/cast"
)

// Entity configuration attribute names accepted by Get, Set and Is.
const (
	AttrIsExtend    = "is_extend"
	AttrUpgradeable = "upgradeable"
	AttrState       = "state"
	AttrIsDeleted   = "is_deleted"
	AttrExtendClass = "extend_class"
	AttrSchema      = "schema"
	AttrRelation    = "relation"
)

// EntityConfig is the extend configuration of one entity class.
type EntityConfig struct {
	ClassName   string `json:"class_name" yaml:"class_name"`
	IsExtend    bool   `json:"is_extend" yaml:"is_extend"`
	Upgradeable bool   `json:"upgradeable" yaml:"upgradeable"`
	Lifecycle   `yaml:",inline"`

	// ExtendClass is the generated mapped superclass of an Extend entity.
	ExtendClass string `json:"extend_class,omitempty" yaml:"extend_class,omitempty"`

	// Schema is nil until the entity has been built once.
	Schema *SchemaDescriptor `json:"schema,omitempty" yaml:"schema,omitempty"`

	Relations []RelationLink `json:"relation,omitempty" yaml:"relation,omitempty"`
}

// NewEntityConfig returns a New, non-extendable configuration for className.
func NewEntityConfig(className string) *EntityConfig {
	return &EntityConfig{ClassName: className, Lifecycle: Lifecycle{State: StateNew}}
}

// ID returns the configuration id of the entity.
func (e *EntityConfig) ID() ConfigID {
	return EntityID(e.ClassName)
}

// Eligible reports whether the compiler regenerates this entity.
func (e *EntityConfig) Eligible() bool {
	return e.IsExtend && e.Upgradeable
}

// AddRelation appends a link, replacing an existing link with the same key.
func (e *EntityConfig) AddRelation(link RelationLink) {
	for i := range e.Relations {
		if e.Relations[i].Key == link.Key {
			e.Relations[i] = link
			return
		}
	}
	e.Relations = append(e.Relations, link)
}

// Clone returns a deep copy of the configuration.
func (e *EntityConfig) Clone() *EntityConfig {
	c := *e
	c.Schema = e.Schema.Clone()
	if e.Relations != nil {
		c.Relations = make([]RelationLink, len(e.Relations))
		for i, l := range e.Relations {
			l.FieldID = cloneID(l.FieldID)
			l.TargetFieldID = cloneID(l.TargetFieldID)
			c.Relations[i] = l
		}
	}
	return &c
}

// Get returns the value of a named attribute.
// Returns ErrUnknownAttribute for names the entity does not carry.
func (e *EntityConfig) Get(attr string) (any, error) {
	switch attr {
	case AttrIsExtend:
		return e.IsExtend, nil
	case AttrUpgradeable:
		return e.Upgradeable, nil
	case AttrState:
		return e.State, nil
	case AttrIsDeleted:
		return e.IsDeleted, nil
	case AttrExtendClass:
		return e.ExtendClass, nil
	case AttrSchema:
		return e.Schema, nil
	case AttrRelation:
		return e.Relations, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
}

// Set assigns a named attribute, coercing scalar values from strings.
// is_deleted is derived from state and cannot be set directly.
func (e *EntityConfig) Set(attr string, value any) error {
	switch attr {
	case AttrIsExtend:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidData, attr, err)
		}
		e.IsExtend = v
	case AttrUpgradeable:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidData, attr, err)
		}
		e.Upgradeable = v
	case AttrState:
		v, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidData, attr, err)
		}
		return e.setState(v)
	case AttrExtendClass:
		v, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidData, attr, err)
		}
		e.ExtendClass = v
	case AttrSchema:
		s, ok := value.(*SchemaDescriptor)
		if !ok && value != nil {
			return fmt.Errorf("%w: %s", ErrInvalidData, attr)
		}
		e.Schema = s
	case AttrRelation:
		r, ok := value.([]RelationLink)
		if !ok && value != nil {
			return fmt.Errorf("%w: %s", ErrInvalidData, attr)
		}
		e.Relations = r
	case AttrIsDeleted:
		return fmt.Errorf("%w: %s is derived from state", ErrInvalidData, attr)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
	return nil
}

// Is reports the boolean value of a named attribute. Unknown or non-boolean
// attributes report false.
func (e *EntityConfig) Is(attr string) bool {
	v, err := e.Get(attr)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func cloneID(id *ConfigID) *ConfigID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
