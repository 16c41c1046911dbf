// Package schemaservice implements the schema service (C9): schema-specific
// read and edit operations layered over the node service (C8). It holds no
// store handle of its own — every mutation it makes is routed back through
// nodeservice's already-atomic schema-node create/update paths, so the DDL
// sync for a spoke or relation table only ever happens in one place.
package schemaservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/nodeservice"
	"github.com/nodespace/core/pkg/schema"
)

// Service is the schema service (C9). The zero value is not usable; build
// one with New.
type Service struct {
	nodes *nodeservice.Service
}

// New builds a schema service over nodes. Callers must also wire the result
// back in with nodes.SetSchemaLookup(svc) so the node service can apply
// defaults and validate fields against the schemas this service manages.
func New(nodes *nodeservice.Service) *Service {
	return &Service{nodes: nodes}
}

// GetSchemaDefinition satisfies nodeservice.SchemaLookup: it is the lookup
// the node service calls on every create/update of a typed node.
func (s *Service) GetSchemaDefinition(ctx context.Context, typeName string) (*schema.Definition, bool, error) {
	n, err := s.nodes.GetSchemaNode(ctx, typeName)
	if err != nil {
		return nil, false, err
	}
	if n == nil {
		return nil, false, nil
	}
	def, err := decodeDefinition(n)
	if err != nil {
		return nil, false, err
	}
	return &def, true, nil
}

// GetSchema is the public, handler-facing equivalent of GetSchemaDefinition:
// it returns (nil, nil) rather than (nil, false, nil) when no schema is
// registered for typeName.
func (s *Service) GetSchema(ctx context.Context, typeName string) (*schema.Definition, error) {
	def, ok, err := s.GetSchemaDefinition(ctx, typeName)
	if err != nil || !ok {
		return nil, err
	}
	return def, nil
}

// GetSchemaNode returns the raw schema node backing typeName, for callers
// that need the hub record itself (id, version, timestamps) rather than the
// decoded definition.
func (s *Service) GetSchemaNode(ctx context.Context, typeName string) (*store.Node, error) {
	return s.nodes.GetSchemaNode(ctx, typeName)
}

// GetAllSchemas returns every registered schema definition, keyed by type
// name.
func (s *Service) GetAllSchemas(ctx context.Context) (map[string]schema.Definition, error) {
	nodes, err := s.nodes.ListSchemaNodes(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]schema.Definition, len(nodes))
	for _, n := range nodes {
		def, err := decodeDefinition(n)
		if err != nil {
			return nil, err
		}
		out[def.TypeName] = def
	}
	return out, nil
}

// CreateSchema registers a brand-new schema and runs its spoke/relation DDL,
// via the node service's atomic schema-create path. typeName must not
// already have a schema.
func (s *Service) CreateSchema(ctx context.Context, def schema.Definition) (*store.Node, error) {
	if def.TypeName == "" {
		return nil, &store.InvalidPropertiesError{Reason: "schema: type_name must not be empty"}
	}
	existing, err := s.nodes.GetSchemaNode(ctx, def.TypeName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &store.InvalidUpdateError{Reason: fmt.Sprintf("schema: type %q already exists", def.TypeName)}
	}
	for _, f := range def.Fields {
		if err := schema.ValidateFieldName(f.Name, ""); err != nil {
			return nil, &store.InvalidPropertiesError{Reason: err.Error()}
		}
	}
	for _, rel := range def.Relationships {
		if err := schema.ValidateRelationshipName(rel.Name); err != nil {
			return nil, &store.InvalidPropertiesError{Reason: err.Error()}
		}
	}
	if def.Version == 0 {
		def.Version = 1
	}

	encoded, err := json.Marshal(def)
	if err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}
	n := &store.Node{
		ID:       def.TypeName,
		NodeType: store.NodeTypeSchema,
		Content:  string(encoded),
	}
	return s.nodes.CreateNode(ctx, n)
}

// ValidateNodeAgainstSchema checks properties against typeName's registered
// schema (required fields present, enum membership), returning nil if the
// type has no schema registered — schema-less types accept any properties.
func (s *Service) ValidateNodeAgainstSchema(ctx context.Context, typeName string, properties map[string]any) error {
	def, ok, err := s.GetSchemaDefinition(ctx, typeName)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, f := range def.Fields {
		raw, present := properties[f.Name]
		if !present || raw == nil {
			if f.Required && f.Default == nil {
				return &store.MissingFieldError{Field: f.Name}
			}
			continue
		}
		if f.Kind == schema.FieldEnum {
			v, ok := raw.(string)
			if !ok || !schema.IsValidEnumValue(f, v) {
				return &store.ValidationFailedError{Reason: fmt.Sprintf("field %q: %v is not a valid value for enum", f.Name, raw)}
			}
		}
	}
	return nil
}

func marshalDefinition(def schema.Definition) (string, error) {
	encoded, err := json.Marshal(def)
	if err != nil {
		return "", &store.InvalidPropertiesError{Reason: err.Error()}
	}
	return string(encoded), nil
}

func decodeDefinition(n *store.Node) (schema.Definition, error) {
	var def schema.Definition
	if err := json.Unmarshal([]byte(n.Content), &def); err != nil {
		return schema.Definition{}, &store.InvalidPropertiesError{Reason: "schema node content: " + err.Error()}
	}
	if def.TypeName == "" {
		def.TypeName = n.ID
	}
	return def, nil
}
