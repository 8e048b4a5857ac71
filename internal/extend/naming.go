package extend

import "strings"

// Reserved names of generated code.
const (
	// EntityNamespace prefixes the class names of custom entities.
	EntityNamespace = `Extend\Entity\`

	// FieldPrefix prefixes every generated field name.
	FieldPrefix = "field_"

	// DefaultPrefix prefixes the default-collection marker of a to-many side.
	DefaultPrefix = "default_"

	// TablePrefix prefixes the table of a custom entity.
	TablePrefix = "oro_extend_"

	// IdentifierField is the identity column of a custom entity.
	IdentifierField = "id"
)

// IsCustomEntity reports whether className lives in the generated namespace.
func IsCustomEntity(className string) bool {
	return strings.HasPrefix(className, EntityNamespace)
}

// GeneratedFieldName returns the generated name of a field.
func GeneratedFieldName(fieldName string) string {
	return FieldPrefix + fieldName
}

// DefaultMarkerName returns the default-collection marker of a to-many field.
func DefaultMarkerName(fieldName string) string {
	return DefaultPrefix + fieldName
}

// TableName returns the table of a custom entity: the class name lowercased
// with namespace separators removed, behind TablePrefix.
func TableName(className string) string {
	return TablePrefix + strings.ToLower(strings.ReplaceAll(className, `\`, ""))
}
