package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Field configuration attribute names accepted by Get, Set and Is, in
// addition to AttrState and AttrIsDeleted.
const (
	AttrExtend    = "extend"
	AttrLength    = "length"
	AttrPrecision = "precision"
	AttrScale     = "scale"
)

// FieldConfig is the extend configuration of one field.
type FieldConfig struct {
	ClassName string `json:"class_name" yaml:"class_name"`
	FieldName string `json:"field_name" yaml:"field_name"`
	FieldType string `json:"field_type" yaml:"field_type"`

	// Extend marks the field as part of the generated schema.
	Extend bool `json:"extend" yaml:"extend"`

	Length    *int `json:"length" yaml:"length"`
	Precision *int `json:"precision" yaml:"precision"`
	Scale     *int `json:"scale" yaml:"scale"`

	Lifecycle `yaml:",inline"`
}

// NewFieldConfig returns a New extend field configuration.
func NewFieldConfig(className, fieldName, fieldType string) *FieldConfig {
	return &FieldConfig{
		ClassName: className,
		FieldName: fieldName,
		FieldType: fieldType,
		Extend:    true,
		Lifecycle: Lifecycle{State: StateNew},
	}
}

// ID returns the configuration id of the field.
func (f *FieldConfig) ID() ConfigID {
	return FieldID(f.ClassName, f.FieldName, f.FieldType)
}

// IsRelation reports whether the field is a relation field.
func (f *FieldConfig) IsRelation() bool {
	return IsRelationType(f.FieldType)
}

// Clone returns a deep copy of the configuration.
func (f *FieldConfig) Clone() *FieldConfig {
	c := *f
	c.Length = cloneInt(f.Length)
	c.Precision = cloneInt(f.Precision)
	c.Scale = cloneInt(f.Scale)
	return &c
}

// Get returns the value of a named attribute. Unset length, precision and
// scale are returned as a nil *int.
func (f *FieldConfig) Get(attr string) (any, error) {
	switch attr {
	case AttrExtend:
		return f.Extend, nil
	case AttrLength:
		return f.Length, nil
	case AttrPrecision:
		return f.Precision, nil
	case AttrScale:
		return f.Scale, nil
	case AttrState:
		return f.State, nil
	case AttrIsDeleted:
		return f.IsDeleted, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
}

// Set assigns a named attribute. A nil or empty value clears length,
// precision and scale.
func (f *FieldConfig) Set(attr string, value any) error {
	switch attr {
	case AttrExtend:
		v, err := cast.ToBoolE(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidData, attr, err)
		}
		f.Extend = v
	case AttrLength, AttrPrecision, AttrScale:
		p, err := toIntPtr(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidData, attr, err)
		}
		switch attr {
		case AttrLength:
			f.Length = p
		case AttrPrecision:
			f.Precision = p
		default:
			f.Scale = p
		}
	case AttrState:
		v, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidData, attr, err)
		}
		return f.setState(v)
	case AttrIsDeleted:
		return fmt.Errorf("%w: %s is derived from state", ErrInvalidData, attr)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
	return nil
}

// Is reports the boolean value of a named attribute.
func (f *FieldConfig) Is(attr string) bool {
	v, err := f.Get(attr)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func toIntPtr(value any) (*int, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *int:
		return cloneInt(v), nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" || v == "null" {
			return nil, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		return &n, nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
