package nodeservice

import (
	"context"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/eventbus"
)

// AddMembership implements add_to_collection's validation and write: the
// target must be a collection node and the member must exist, then the
// member_of edge is written idempotently and a single RelationshipCreated
// event is published — the collection service (C10) never touches the bus
// directly, so clients see one unified relationship-event stream regardless
// of whether membership changed through a path-resolve or a direct call.
func (s *Service) AddMembership(ctx context.Context, memberID, collectionID string) error {
	collection, err := s.store.GetNode(ctx, collectionID)
	if err != nil {
		return err
	}
	if collection == nil || collection.NodeType != store.NodeTypeCollection {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("%q is not a collection", collectionID)}
	}
	member, err := s.store.GetNode(ctx, memberID)
	if err != nil {
		return err
	}
	if member == nil {
		return &store.NodeNotFoundError{ID: memberID}
	}

	if err := s.store.AddMembership(ctx, store.MembershipEdge{MemberID: memberID, CollectionID: collectionID}); err != nil {
		return err
	}

	s.bus.Publish(eventbus.Event{
		Kind:           eventbus.RelationshipCreated,
		NodeID:         memberID,
		SourceClientID: s.clientID,
		Edge:           eventbus.EdgeRelationship{Kind: "member_of", SourceID: memberID, CollectionID: collectionID},
	})
	return nil
}

// RemoveMembership deletes the member_of edge and publishes
// RelationshipDeleted. Idempotent: removing an edge that doesn't exist is
// not an error.
func (s *Service) RemoveMembership(ctx context.Context, memberID, collectionID string) error {
	if err := s.store.RemoveMembership(ctx, memberID, collectionID); err != nil {
		return err
	}
	s.bus.Publish(eventbus.Event{
		Kind:           eventbus.RelationshipDeleted,
		NodeID:         memberID,
		SourceClientID: s.clientID,
		Edge:           eventbus.EdgeRelationship{Kind: "member_of", SourceID: memberID, CollectionID: collectionID},
	})
	return nil
}

// GetCollectionsFor returns every collection id memberID directly belongs
// to, implementing the node record's derived member_of field (§3).
func (s *Service) GetCollectionsFor(ctx context.Context, memberID string) ([]string, error) {
	return s.store.GetCollectionsFor(ctx, memberID)
}

// GetMembers returns every member id of collectionID.
func (s *Service) GetMembers(ctx context.Context, collectionID string) ([]string, error) {
	return s.store.GetMembers(ctx, collectionID)
}

// CountMembers returns the number of direct members of collectionID.
func (s *Service) CountMembers(ctx context.Context, collectionID string) (int, error) {
	return s.store.CountMembers(ctx, collectionID)
}

// ListNodesByType returns every stored node of the given type, in no
// particular order. The collection service (C10) uses this to resolve a
// collection name to its node without needing its own store handle.
func (s *Service) ListNodesByType(ctx context.Context, nodeType string) ([]*store.Node, error) {
	return s.store.ListNodes(ctx, store.NodeFilter{NodeType: &nodeType})
}
