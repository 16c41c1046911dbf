package schemaservice

import (
	"context"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/schema"
)

// AddField appends a new user field to typeName's schema and runs the
// resulting ALTER TABLE via the node service's atomic schema-update path.
// Only user-namespaced additions are allowed here; core fields ship with
// the type at creation time.
func (s *Service) AddField(ctx context.Context, typeName string, field schema.Field) (*store.Node, error) {
	n, def, err := s.loadForEdit(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if _, exists := def.FieldByName(field.Name); exists {
		return nil, &store.InvalidUpdateError{Reason: fmt.Sprintf("schema: field %q already exists on %q", field.Name, typeName)}
	}
	if err := schema.ValidateFieldName(field.Name, ""); err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}
	field.Protection = schema.ProtectionUser
	def.Fields = append(def.Fields, field)
	return s.writeBack(ctx, n, def)
}

// RemoveField drops a user field from typeName's schema. Core and system
// fields can never be removed through this path.
func (s *Service) RemoveField(ctx context.Context, typeName, fieldName string) (*store.Node, error) {
	n, def, err := s.loadForEdit(ctx, typeName)
	if err != nil {
		return nil, err
	}
	f, exists := def.FieldByName(fieldName)
	if !exists {
		return nil, &store.InvalidUpdateError{Reason: fmt.Sprintf("schema: field %q does not exist on %q", fieldName, typeName)}
	}
	if f.Protection != schema.ProtectionUser {
		return nil, &store.InvalidUpdateError{Reason: fmt.Sprintf("schema: field %q is %s and cannot be removed", fieldName, f.Protection)}
	}
	kept := def.Fields[:0:0]
	for _, existing := range def.Fields {
		if existing.Name != fieldName {
			kept = append(kept, existing)
		}
	}
	def.Fields = kept
	return s.writeBack(ctx, n, def)
}

// ExtendEnumField appends value to an extensible enum field's user values.
func (s *Service) ExtendEnumField(ctx context.Context, typeName, fieldName, value string) (*store.Node, error) {
	n, def, err := s.loadForEdit(ctx, typeName)
	if err != nil {
		return nil, err
	}
	idx, err := fieldIndex(def, fieldName)
	if err != nil {
		return nil, err
	}
	if err := schema.AddEnumValue(&def.Fields[idx], value); err != nil {
		return nil, &store.InvalidUpdateError{Reason: err.Error()}
	}
	return s.writeBack(ctx, n, def)
}

// RemoveEnumValue removes value from an enum field's user values. Core enum
// values can never be removed.
func (s *Service) RemoveEnumValue(ctx context.Context, typeName, fieldName, value string) (*store.Node, error) {
	n, def, err := s.loadForEdit(ctx, typeName)
	if err != nil {
		return nil, err
	}
	idx, err := fieldIndex(def, fieldName)
	if err != nil {
		return nil, err
	}
	if err := schema.RemoveEnumValue(&def.Fields[idx], value); err != nil {
		return nil, &store.InvalidUpdateError{Reason: err.Error()}
	}
	return s.writeBack(ctx, n, def)
}

// SyncSchemaToDatabase re-writes typeName's current definition unchanged,
// forcing the node service's DDL-sync path to re-run. Useful as a repair
// operation after a spoke table was dropped or corrupted out of band.
func (s *Service) SyncSchemaToDatabase(ctx context.Context, typeName string) (*store.Node, error) {
	n, def, err := s.loadForEdit(ctx, typeName)
	if err != nil {
		return nil, err
	}
	return s.writeBack(ctx, n, def)
}

func fieldIndex(def schema.Definition, fieldName string) (int, error) {
	for i, f := range def.Fields {
		if f.Name == fieldName {
			return i, nil
		}
	}
	return 0, &store.InvalidUpdateError{Reason: fmt.Sprintf("schema: field %q does not exist", fieldName)}
}

// loadForEdit fetches the current schema node and its decoded definition in
// one step, for the edit operations below.
func (s *Service) loadForEdit(ctx context.Context, typeName string) (*store.Node, schema.Definition, error) {
	n, err := s.nodes.GetSchemaNode(ctx, typeName)
	if err != nil {
		return nil, schema.Definition{}, err
	}
	if n == nil {
		return nil, schema.Definition{}, &store.NodeNotFoundError{ID: typeName}
	}
	def, err := decodeDefinition(n)
	if err != nil {
		return nil, schema.Definition{}, err
	}
	return n, def, nil
}

// writeBack encodes def as n's new content and routes the write through
// UpdateNodeWithOCC, so the version bump and DDL sync happen exactly as they
// would for any other schema edit — there is no separate "bump version"
// step here, nodeservice's updateSchemaNode owns that.
func (s *Service) writeBack(ctx context.Context, n *store.Node, def schema.Definition) (*store.Node, error) {
	encoded, err := marshalDefinition(def)
	if err != nil {
		return nil, err
	}
	return s.nodes.UpdateNodeWithOCC(ctx, n.ID, n.Version, store.NodeUpdate{Content: &encoded})
}
