package types

import "strings"

// ConfigID addresses one entity or field configuration. Entity ids leave
// FieldName and FieldType empty.
type ConfigID struct {
	ClassName string `json:"class_name" yaml:"class_name"`
	FieldName string `json:"field_name,omitempty" yaml:"field_name,omitempty"`
	FieldType string `json:"field_type,omitempty" yaml:"field_type,omitempty"`
}

// EntityID returns the id of the entity configuration for className.
func EntityID(className string) ConfigID {
	return ConfigID{ClassName: className}
}

// FieldID returns the id of a field configuration.
func FieldID(className, fieldName, fieldType string) ConfigID {
	return ConfigID{ClassName: className, FieldName: fieldName, FieldType: fieldType}
}

// IsField reports whether the id addresses a field configuration.
func (id ConfigID) IsField() bool {
	return id.FieldName != ""
}

// Validate returns ErrInvalidID when the class name is empty.
func (id ConfigID) Validate() error {
	if strings.TrimSpace(id.ClassName) == "" {
		return ErrInvalidID
	}
	return nil
}

// Equal compares class and field name. The field type is descriptive and
// does not take part in identity.
func (id ConfigID) Equal(other ConfigID) bool {
	return id.ClassName == other.ClassName && id.FieldName == other.FieldName
}

// String renders "Class" for entities and "Class::field" for fields.
func (id ConfigID) String() string {
	if id.FieldName == "" {
		return id.ClassName
	}
	return id.ClassName + "::" + id.FieldName
}

// ParseConfigID is the inverse of String. The field type is left empty.
func ParseConfigID(s string) (ConfigID, error) {
	class, field, _ := strings.Cut(s, "::")
	id := ConfigID{ClassName: class, FieldName: field}
	if err := id.Validate(); err != nil {
		return ConfigID{}, err
	}
	return id, nil
}
