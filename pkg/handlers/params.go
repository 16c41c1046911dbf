package handlers

import "github.com/nodespace/core/pkg/schema"

// Params is the decoded JSON object a caller passes to Dispatch. Handlers
// pull typed values out of it field by field rather than unmarshaling into
// a fixed struct, since every operation accepts a different shape.
type Params map[string]any

func (p Params) str(name string) (string, *Error) {
	v, ok := p[name]
	if !ok {
		return "", missingParam(name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", missingParam(name)
	}
	return s, nil
}

// optStr returns "" with no error when name is absent, the teacher's
// optional-parameter idiom for fields a handler treats as "unset" rather
// than as a validation failure.
func (p Params) optStr(name string) string {
	if v, ok := p[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (p Params) optStrPtr(name string) *string {
	if v, ok := p[name]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}

func (p Params) optInt(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

func (p Params) intRequired(name string) (int, *Error) {
	v, ok := p[name]
	if !ok {
		return 0, missingParam(name)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, newError("invalid_properties", name+" must be a number")
}

func (p Params) optBool(name string, def bool) bool {
	if v, ok := p[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (p Params) optMap(name string) map[string]any {
	if v, ok := p[name]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

func (p Params) optStrSlice(name string) []string {
	v, ok := p[name]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// field decodes one wire field-definition object (as used by
// create_schema_node_atomic's `fields` array) into a schema.Field. Nested
// object/array member shapes recurse through the same decoder.
func field(raw map[string]any) schema.Field {
	p := Params(raw)
	f := schema.Field{
		Name:        p.optStr("name"),
		Kind:        schema.FieldKind(p.optStr("kind")),
		ElementKind: schema.FieldKind(p.optStr("element_kind")),
		Required:    p.optBool("required", false),
		Indexed:     p.optBool("indexed", false),
		Unique:      p.optBool("unique", false),
		Extensible:  p.optBool("extensible", false),
		CoreValues:  p.optStrSlice("core_values"),
		UserValues:  p.optStrSlice("user_values"),
	}
	if v, ok := raw["default"]; ok {
		f.Default = v
	}
	if protection := p.optStr("protection"); protection != "" {
		f.Protection = schema.FieldProtection(protection)
	}
	if nested, ok := raw["fields"].([]any); ok {
		f.Fields = make([]schema.Field, 0, len(nested))
		for _, n := range nested {
			if m, ok := n.(map[string]any); ok {
				f.Fields = append(f.Fields, field(m))
			}
		}
	}
	return f
}

func fields(raw []any) []schema.Field {
	out := make([]schema.Field, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, field(m))
		}
	}
	return out
}

func relationship(raw map[string]any) schema.Relationship {
	p := Params(raw)
	r := schema.Relationship{
		Name:        p.optStr("name"),
		TargetType:  p.optStr("target_type"),
		Cardinality: p.optStr("cardinality"),
		Required:    p.optBool("required", false),
	}
	if nested, ok := raw["fields"].([]any); ok {
		r.Fields = fields(nested)
	}
	return r
}

// definition decodes the `definition` object create_schema_node_atomic and
// sync_schema_to_database's atomic-create sibling accept into a
// schema.Definition.
func definition(raw map[string]any) schema.Definition {
	p := Params(raw)
	def := schema.Definition{
		TypeName:    p.optStr("type_name"),
		Description: p.optStr("description"),
		Version:     p.optInt("version", 1),
	}
	if raw, ok := raw["fields"].([]any); ok {
		def.Fields = fields(raw)
	}
	if raw, ok := raw["relationships"].([]any); ok {
		def.Relationships = make([]schema.Relationship, 0, len(raw))
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				def.Relationships = append(def.Relationships, relationship(m))
			}
		}
	}
	return def
}
