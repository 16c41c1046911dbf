package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// EncodeFieldValue converts a decoded JSON property value into the form its
// spoke column stores: booleans as 0/1, dates as unix seconds, arrays and
// objects as JSON text.
func EncodeFieldValue(f Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch f.Kind {
	case FieldBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("schema: field %q expects boolean, got %T", f.Name, value)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case FieldDate:
		switch v := value.(type) {
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("schema: field %q: %w", f.Name, err)
			}
			return t.Unix(), nil
		case float64:
			return int64(v), nil
		default:
			return nil, fmt.Errorf("schema: field %q expects date, got %T", f.Name, value)
		}
	case FieldArray, FieldObject:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("schema: field %q: %w", f.Name, err)
		}
		return string(encoded), nil
	case FieldNumber:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		default:
			return nil, fmt.Errorf("schema: field %q expects number, got %T", f.Name, value)
		}
	case FieldEnum, FieldString, FieldRecord:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("schema: field %q expects string, got %T", f.Name, value)
		}
		return s, nil
	default:
		return value, nil
	}
}

// DecodeFieldValue is EncodeFieldValue's inverse, used when hydrating a
// spoke row back into a properties map.
func DecodeFieldValue(f Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch f.Kind {
	case FieldBoolean:
		switch v := raw.(type) {
		case int64:
			return v != 0, nil
		case bool:
			return v, nil
		default:
			return nil, fmt.Errorf("schema: field %q: unexpected stored type %T", f.Name, raw)
		}
	case FieldDate:
		sec, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("schema: field %q: unexpected stored type %T", f.Name, raw)
		}
		return time.Unix(sec, 0).UTC().Format(time.RFC3339), nil
	case FieldArray, FieldObject:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("schema: field %q: unexpected stored type %T", f.Name, raw)
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("schema: field %q: %w", f.Name, err)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// InsertColumns returns the spoke-table column names (in Definition.Fields
// order, "node" not included) and the corresponding encoded values pulled
// out of properties. A missing optional field encodes as nil; a missing
// required field without a default is an error.
func InsertColumns(d Definition, properties map[string]any) (columns []string, values []any, err error) {
	for _, f := range d.Fields {
		raw, present := properties[f.Name]
		if !present {
			if f.Required && f.Default == nil {
				return nil, nil, fmt.Errorf("schema: missing required field %q", f.Name)
			}
			raw = f.Default
		}
		encoded, err := EncodeFieldValue(f, raw)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, columnName(f))
		values = append(values, encoded)
	}
	return columns, values, nil
}

// RelationInsertColumns mirrors InsertColumns for a relationship's edge
// fields.
func RelationInsertColumns(rel Relationship, data map[string]any) (columns []string, values []any, err error) {
	for _, f := range rel.Fields {
		raw, present := data[f.Name]
		if !present {
			if f.Required && f.Default == nil {
				return nil, nil, fmt.Errorf("schema: missing required edge field %q", f.Name)
			}
			raw = f.Default
		}
		encoded, err := EncodeFieldValue(f, raw)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, columnName(f))
		values = append(values, encoded)
	}
	return columns, values, nil
}
