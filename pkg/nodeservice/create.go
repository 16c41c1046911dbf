package nodeservice

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/nodeid"
	"github.com/nodespace/core/pkg/schema"
)

// CreateParams is the input to CreateNodeWithParent, the primary creation
// API used by handlers and the Markdown importer alike.
type CreateParams struct {
	ID         string // empty generates a fresh UUID
	NodeType   string
	Content    string
	Properties map[string]any
	ParentID   string

	// InsertAfterNodeID is nil to insert before all current siblings, or
	// points at the sibling this node must follow.
	InsertAfterNodeID *string
}

// CreateNode runs the base creation pipeline (§4.7.1) on an already-built
// node: date-id rewrite, behavior validation, then either the schema-create
// atomic path (node_type == "schema") or defaults/validation against the
// type's schema followed by a plain store create.
func (s *Service) CreateNode(ctx context.Context, n *store.Node) (*store.Node, error) {
	if nodeid.IsValidDateID(n.ID) {
		n.NodeType = store.NodeTypeDate
	}

	if err := s.behaviors.Validate(n); err != nil {
		return nil, &store.ValidationFailedError{Reason: err.Error()}
	}

	if n.NodeType == store.NodeTypeSchema {
		if err := s.createSchemaNode(ctx, n); err != nil {
			return nil, err
		}
		return n, nil
	}

	if err := s.applySchemaDefaultsAndValidate(ctx, n); err != nil {
		return nil, err
	}
	if err := s.store.CreateNode(ctx, n, s.clientID); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateNodeWithParent implements §4.7.2: auto-creates a missing date
// parent container, validates the parent and optional insert-after
// sibling, resolves the final id, creates the node, and — if a parent was
// given — positions it atomically via the store's move primitive before
// queuing the root for embedding.
func (s *Service) CreateNodeWithParent(ctx context.Context, p CreateParams) (*store.Node, error) {
	if p.ParentID != "" && nodeid.IsValidDateID(p.ParentID) {
		if err := s.ensureDateContainer(ctx, p.ParentID); err != nil {
			return nil, err
		}
	}

	if p.ParentID != "" {
		parent, err := s.store.GetNode(ctx, p.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, &store.InvalidParentError{Reason: fmt.Sprintf("parent %q does not exist", p.ParentID)}
		}
	}

	if p.InsertAfterNodeID != nil {
		sibling, err := s.store.GetParentEdge(ctx, *p.InsertAfterNodeID)
		if err != nil {
			return nil, err
		}
		if sibling == nil || sibling.ParentID != p.ParentID {
			return nil, &store.InvalidParentError{Reason: fmt.Sprintf("insert_after %q is not a sibling under %q", *p.InsertAfterNodeID, p.ParentID)}
		}
	}

	id, err := resolveNodeID(p.NodeType, p.ID)
	if err != nil {
		return nil, err
	}

	props, err := json.Marshal(p.Properties)
	if err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}

	n := &store.Node{ID: id, NodeType: p.NodeType, Content: p.Content, Properties: props}
	created, err := s.CreateNode(ctx, n)
	if err != nil {
		return nil, err
	}

	if p.ParentID != "" {
		order, err := s.nextOrder(ctx, p.ParentID, p.InsertAfterNodeID)
		if err != nil {
			return nil, err
		}
		if err := s.store.ReparentNode(ctx, created.ID, p.ParentID, order); err != nil {
			return nil, err
		}
		rootID, err := s.GetRootID(ctx, p.ParentID)
		if err != nil {
			s.log.Warn("nodeservice: failed to resolve root for embedding queue", "parent_id", p.ParentID, "error", err)
		} else {
			s.queueEmbedding(ctx, rootID)
		}
		s.bus.Publish(s.hierarchyEvent(p.ParentID, created.ID, order))
	} else if isEmbeddableRoot(created.NodeType) {
		s.queueEmbedding(ctx, created.ID)
	}

	return created, nil
}

// ensureDateContainer auto-persists a virtual date node the first time
// anything is created under it.
func (s *Service) ensureDateContainer(ctx context.Context, dateID string) error {
	existing, err := s.store.GetNode(ctx, dateID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	n := &store.Node{ID: dateID, NodeType: store.NodeTypeDate, Content: dateID}
	return s.store.CreateNode(ctx, n, s.clientID)
}

// GetNode returns the stored node, or a synthesized virtual date node for a
// missing valid YYYY-MM-DD id, or (nil, nil) for any other missing id. The
// synthesized node is never persisted.
func (s *Service) GetNode(ctx context.Context, id string) (*store.Node, error) {
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n != nil {
		if err := s.migrateIfNeeded(ctx, n); err != nil {
			return nil, err
		}
		return n, nil
	}
	if nodeid.IsValidDateID(id) {
		return &store.Node{
			ID:              id,
			NodeType:        store.NodeTypeDate,
			Content:         id,
			Version:         0,
			Properties:      []byte("{}"),
			LifecycleStatus: store.LifecycleActive,
		}, nil
	}
	return nil, nil
}

// migrateIfNeeded applies the migration chain (C6) when a node's stamped
// _schema_version is behind the type's current schema version, persisting
// the result via a follow-up update.
func (s *Service) migrateIfNeeded(ctx context.Context, n *store.Node) error {
	if s.schemas == nil || s.migrations == nil {
		return nil
	}
	def, ok, err := s.schemas.GetSchemaDefinition(ctx, n.NodeType)
	if err != nil || !ok {
		return nil
	}
	applied, err := s.migrations.Migrate(n, def.Version)
	if err != nil {
		return fmt.Errorf("nodeservice: migrate %q: %w", n.ID, err)
	}
	if applied == 0 {
		return nil
	}
	props := map[string]any{}
	if err := json.Unmarshal(n.Properties, &props); err != nil {
		return err
	}
	updated, err := s.store.UpdateNode(ctx, n.ID, n.Version, store.NodeUpdate{Properties: props}, s.clientID)
	if err != nil {
		return err
	}
	*n = *updated
	return nil
}

// applySchemaDefaultsAndValidate fetches n's type schema once, fills in
// defaults for missing fields, validates required fields and enum
// membership, and — only if the schema defines any field — stamps
// _schema_version into properties.
func (s *Service) applySchemaDefaultsAndValidate(ctx context.Context, n *store.Node) error {
	if s.schemas == nil {
		return nil
	}
	def, ok, err := s.schemas.GetSchemaDefinition(ctx, n.NodeType)
	if err != nil {
		return err
	}
	if !ok || len(def.Fields) == 0 {
		return nil
	}

	props, err := n.DecodeProperties()
	if err != nil {
		return &store.InvalidPropertiesError{Reason: err.Error()}
	}
	applyFieldDefaults(def.Fields, props)
	if err := validateFields(def.Fields, props); err != nil {
		return err
	}
	props[store.SchemaVersionKey] = float64(def.Version)

	encoded, err := json.Marshal(props)
	if err != nil {
		return &store.InvalidPropertiesError{Reason: err.Error()}
	}
	n.Properties = encoded
	return nil
}

func applyFieldDefaults(fields []schema.Field, props map[string]any) {
	for _, f := range fields {
		if _, present := props[f.Name]; !present && f.Default != nil {
			props[f.Name] = f.Default
		}
	}
}

func validateFields(fields []schema.Field, props map[string]any) error {
	for _, f := range fields {
		v, present := props[f.Name]
		if !present {
			if f.Required {
				return &store.MissingFieldError{Field: f.Name}
			}
			continue
		}
		if f.Kind == schema.FieldEnum {
			sv, ok := v.(string)
			if !ok || !schema.IsValidEnumValue(f, sv) {
				return &store.ValidationFailedError{
					Reason: fmt.Sprintf("field %q value %v is not in its enum union", f.Name, v),
				}
			}
		}
	}
	return nil
}

// createSchemaNode implements §4.7.1 step 4: parse fields/relationships,
// compute DDL, and persist the schema node and its spoke/relation tables in
// one atomic operation — the node write and every DDL statement succeed
// together or neither happens. The schema.Definition itself is carried in
// the node's Content (its "body"), matching how every other node type
// carries its textual payload there; Properties stays free for the usual
// per-node property bag.
func (s *Service) createSchemaNode(ctx context.Context, n *store.Node) error {
	def, err := decodeSchemaDefinition(n)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(def)
	if err != nil {
		return &store.InvalidPropertiesError{Reason: err.Error()}
	}
	n.Content = string(encoded)

	var statements []string
	statements = append(statements, schema.CreateSpokeTableDDL(def)...)
	for _, rel := range def.Relationships {
		statements = append(statements, schema.CreateRelationTableDDL(def, rel)...)
	}

	if err := s.store.CreateSchemaNodeAtomic(ctx, n, statements, s.clientID); err != nil {
		return fmt.Errorf("nodeservice: create schema %q: %w", def.TypeName, err)
	}
	return nil
}

func decodeSchemaDefinition(n *store.Node) (schema.Definition, error) {
	var def schema.Definition
	if err := json.Unmarshal([]byte(n.Content), &def); err != nil {
		return schema.Definition{}, &store.InvalidPropertiesError{Reason: "schema node content: " + err.Error()}
	}
	if def.TypeName == "" {
		def.TypeName = n.ID
	}
	if def.Version == 0 {
		def.Version = 1
	}
	return def, nil
}

// resolveNodeID enforces §6.3: custom ids are allowed only for date,
// schema, and test-prefixed nodes; everything else must be a fresh or
// caller-supplied valid UUID.
func resolveNodeID(nodeType, id string) (string, error) {
	if id == "" {
		return nodeid.NewUUID(), nil
	}
	if nodeid.IsValidDateID(id) {
		return id, nil
	}
	if nodeType == store.NodeTypeSchema {
		return id, nil
	}
	if strings.HasPrefix(id, "test-") {
		return id, nil
	}
	if nodeid.IsValidUUID(id) {
		return id, nil
	}
	return "", &store.InvalidIDError{ID: id}
}

// nextOrder computes the fractional order for a new child: immediately
// after insertAfter if given, or before the current first sibling
// otherwise.
func (s *Service) nextOrder(ctx context.Context, parentID string, insertAfter *string) (float64, error) {
	children, err := s.store.GetChildren(ctx, parentID)
	if err != nil {
		return 0, err
	}
	if insertAfter == nil {
		if len(children) == 0 {
			return 1.0, nil
		}
		return children[0].Order - 1.0, nil
	}
	for i, c := range children {
		if c.ChildID == *insertAfter {
			if i+1 < len(children) {
				return (c.Order + children[i+1].Order) / 2, nil
			}
			return c.Order + 1.0, nil
		}
	}
	return 0, &store.InvalidParentError{Reason: fmt.Sprintf("insert_after %q not found among children of %q", *insertAfter, parentID)}
}

func (s *Service) hierarchyEvent(parentID, childID string, order float64) eventbus.Event {
	return eventbus.Event{
		Kind:           eventbus.EdgeCreated,
		NodeID:         childID,
		SourceClientID: s.clientID,
		Edge: eventbus.EdgeRelationship{
			Kind:     "has_child",
			ParentID: parentID,
			ChildID:  childID,
			Order:    order,
		},
	}
}

func isEmbeddableRoot(nodeType string) bool {
	switch nodeType {
	case store.NodeTypeSchema, store.NodeTypeCollection:
		return false
	default:
		return true
	}
}
