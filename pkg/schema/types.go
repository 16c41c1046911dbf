// Package schema defines the shape of user-defined node and relationship
// types and turns that shape into the DDL that creates and evolves their
// backing spoke/relation tables. The manager here is pure: given a
// definition, it returns SQL statement strings. internal/store is the only
// thing that ever executes them.
package schema

// FieldKind enumerates the value shapes a schema field can hold.
type FieldKind string

const (
	FieldString  FieldKind = "string"
	FieldEnum    FieldKind = "enum"
	FieldNumber  FieldKind = "number"
	FieldBoolean FieldKind = "boolean"
	FieldDate    FieldKind = "date"
	FieldArray   FieldKind = "array"
	FieldObject  FieldKind = "object"
	FieldRecord  FieldKind = "record"
)

// FieldProtection controls who may mutate a field's definition once a
// schema has been created.
type FieldProtection string

const (
	// ProtectionCore fields ship with the type and can never be renamed,
	// retyped, or removed by a user-facing schema edit.
	ProtectionCore FieldProtection = "core"
	// ProtectionUser fields were added by a user and may be freely edited
	// or removed again.
	ProtectionUser FieldProtection = "user"
	// ProtectionSystem fields are maintained by the store itself
	// (_schema_version and similar) and are invisible to schema edits.
	ProtectionSystem FieldProtection = "system"
)

// Field describes one hub-spoke field.
type Field struct {
	Name        string
	Kind        FieldKind
	ElementKind FieldKind // element type when Kind == FieldArray
	Required    bool
	Default     any
	Indexed     bool
	Unique      bool
	Protection  FieldProtection

	// Extensible enum fields: CoreValues ship with the type and cannot be
	// removed; UserValues may be appended/removed by schema edits.
	Extensible bool
	CoreValues []string
	UserValues []string

	// Fields holds nested members for FieldObject, or the member shape of
	// each element for FieldArray when ElementKind == FieldObject.
	Fields []Field
}

// AllEnumValues returns CoreValues followed by UserValues, in that order.
func (f Field) AllEnumValues() []string {
	out := make([]string, 0, len(f.CoreValues)+len(f.UserValues))
	out = append(out, f.CoreValues...)
	out = append(out, f.UserValues...)
	return out
}

// Relationship describes a schema-defined relation edge kind originating
// from this type.
type Relationship struct {
	Name         string
	TargetType   string
	Cardinality  string // "one" or "many"
	Fields       []Field
	Required     bool
}

// Definition is a complete, storable schema for one user-defined node type.
type Definition struct {
	TypeName      string
	Description   string
	Version       int
	Fields        []Field
	Relationships []Relationship
}

// FieldByName looks up a top-level field by name.
func (d Definition) FieldByName(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RelationshipByName looks up a relationship by name.
func (d Definition) RelationshipByName(name string) (Relationship, bool) {
	for _, r := range d.Relationships {
		if r.Name == name {
			return r, true
		}
	}
	return Relationship{}, false
}

// SpokeTableName is the physical table backing this type's typed fields.
func (d Definition) SpokeTableName() string {
	return "spoke_" + d.TypeName
}

// RelationTableName is the physical table backing one relationship.
func RelationTableName(typeName string, rel Relationship) string {
	return typeName + "_" + rel.Name + "_" + rel.TargetType
}
