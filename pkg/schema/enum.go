package schema

import "fmt"

// AddEnumValue appends value to an extensible enum field's UserValues,
// rejecting duplicates against both Core and User values and any attempt to
// extend a non-extensible field.
func AddEnumValue(f *Field, value string) error {
	if f.Kind != FieldEnum {
		return fmt.Errorf("schema: field %q is not an enum", f.Name)
	}
	if !f.Extensible {
		return fmt.Errorf("schema: enum field %q is not extensible", f.Name)
	}
	for _, v := range f.AllEnumValues() {
		if v == value {
			return fmt.Errorf("schema: enum field %q already has value %q", f.Name, value)
		}
	}
	f.UserValues = append(f.UserValues, value)
	return nil
}

// RemoveEnumValue removes value from UserValues. Core values can never be
// removed.
func RemoveEnumValue(f *Field, value string) error {
	if f.Kind != FieldEnum {
		return fmt.Errorf("schema: field %q is not an enum", f.Name)
	}
	for _, v := range f.CoreValues {
		if v == value {
			return fmt.Errorf("schema: cannot remove core enum value %q from field %q", value, f.Name)
		}
	}
	for i, v := range f.UserValues {
		if v == value {
			f.UserValues = append(f.UserValues[:i], f.UserValues[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("schema: enum field %q has no user value %q", f.Name, value)
}

// IsValidEnumValue reports whether value is one of f's core or user values.
func IsValidEnumValue(f Field, value string) bool {
	for _, v := range f.AllEnumValues() {
		if v == value {
			return true
		}
	}
	return false
}
