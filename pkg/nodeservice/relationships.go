package nodeservice

import (
	"context"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/schema"
)

// CreateRelationship implements §4.7.7: load the source's schema, find the
// named relationship, verify the target exists and has the declared type,
// enforce cardinality "one", and write the edge with or without data.
func (s *Service) CreateRelationship(ctx context.Context, sourceID, name, targetID string, edgeData map[string]any) error {
	if s.schemas == nil {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("relationship %q is not defined: no schema service wired", name)}
	}
	source, err := s.store.GetNode(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return &store.NodeNotFoundError{ID: sourceID}
	}

	def, ok, err := s.schemas.GetSchemaDefinition(ctx, source.NodeType)
	if err != nil {
		return err
	}
	if !ok {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("type %q has no schema", source.NodeType)}
	}
	rel, ok := def.RelationshipByName(name)
	if !ok {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("type %q has no relationship %q", source.NodeType, name)}
	}

	target, err := s.store.GetNode(ctx, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return &store.NodeNotFoundError{ID: targetID}
	}
	if target.NodeType != rel.TargetType {
		return &store.InvalidUpdateError{
			Reason: fmt.Sprintf("relationship %q targets type %q, got %q", name, rel.TargetType, target.NodeType),
		}
	}

	table := schema.RelationTableName(def.TypeName, rel)
	if rel.Cardinality == "one" {
		existing, err := s.store.GetRelatedNodeIDs(ctx, table, sourceID, true)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return &store.InvalidUpdateError{Reason: fmt.Sprintf("relationship %q already has an edge from %q (cardinality one)", name, sourceID)}
		}
	}

	cols, vals, err := schema.RelationInsertColumns(rel, edgeData)
	if err != nil {
		return &store.InvalidPropertiesError{Reason: err.Error()}
	}

	if err := s.store.CreateRelationEdge(ctx, table, store.RelationEdge{SourceID: sourceID, TargetID: targetID}, cols, vals); err != nil {
		return err
	}

	s.bus.Publish(eventbus.Event{
		Kind:           eventbus.RelationshipCreated,
		NodeID:         sourceID,
		SourceClientID: s.clientID,
		Edge:           eventbus.EdgeRelationship{Kind: "relation", SourceID: sourceID, TargetID: targetID, RelationName: name},
	})
	return nil
}

// DeleteRelationship resolves the edge table from the source's schema and
// deletes the (source, target) edge.
func (s *Service) DeleteRelationship(ctx context.Context, sourceID, name, targetID string) error {
	if s.schemas == nil {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("relationship %q is not defined: no schema service wired", name)}
	}
	source, err := s.store.GetNode(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return &store.NodeNotFoundError{ID: sourceID}
	}
	def, ok, err := s.schemas.GetSchemaDefinition(ctx, source.NodeType)
	if err != nil {
		return err
	}
	if !ok {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("type %q has no schema", source.NodeType)}
	}
	rel, ok := def.RelationshipByName(name)
	if !ok {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("type %q has no relationship %q", source.NodeType, name)}
	}

	table := schema.RelationTableName(def.TypeName, rel)
	if err := s.store.DeleteRelationEdge(ctx, table, sourceID, targetID); err != nil {
		return err
	}

	s.bus.Publish(eventbus.Event{
		Kind:           eventbus.RelationshipDeleted,
		NodeID:         sourceID,
		SourceClientID: s.clientID,
		Edge:           eventbus.EdgeRelationship{Kind: "relation", SourceID: sourceID, TargetID: targetID, RelationName: name},
	})
	return nil
}

// GetRelatedNodes queries the edge table for the given relationship and
// direction, then fetches the node records by id.
func (s *Service) GetRelatedNodes(ctx context.Context, nodeID, name string, outgoing bool) ([]*store.Node, error) {
	if s.schemas == nil {
		return nil, &store.InvalidUpdateError{Reason: fmt.Sprintf("relationship %q is not defined: no schema service wired", name)}
	}
	n, err := s.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, &store.NodeNotFoundError{ID: nodeID}
	}

	var def schema.Definition
	var rel schema.Relationship
	found := false

	if outgoing {
		d, ok, err := s.schemas.GetSchemaDefinition(ctx, n.NodeType)
		if err != nil {
			return nil, err
		}
		if ok {
			if r, ok := d.RelationshipByName(name); ok {
				def, rel, found = *d, r, true
			}
		}
	} else {
		// For incoming direction the relationship is defined on *some*
		// source type; every stored schema node is searched for one whose
		// relationship name matches and whose target type is n's type.
		schemaNodes, err := s.store.ListSchemaNodes(ctx)
		if err != nil {
			return nil, err
		}
		for _, sn := range schemaNodes {
			d, derr := decodeSchemaDefinition(sn)
			if derr != nil {
				continue
			}
			if r, ok := d.RelationshipByName(name); ok && r.TargetType == n.NodeType {
				def, rel, found = d, r, true
				break
			}
		}
	}
	if !found {
		return nil, &store.InvalidUpdateError{Reason: fmt.Sprintf("relationship %q not found for %q", name, nodeID)}
	}

	table := schema.RelationTableName(def.TypeName, rel)
	ids, err := s.store.GetRelatedNodeIDs(ctx, table, nodeID, outgoing)
	if err != nil {
		return nil, err
	}

	out := make([]*store.Node, 0, len(ids))
	for _, id := range ids {
		related, err := s.store.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if related != nil {
			out = append(out, related)
		}
	}
	return out, nil
}
