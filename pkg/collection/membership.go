package collection

import (
	"context"
	"fmt"

	"github.com/nodespace/core/internal/store"
)

// maxAncestorScan bounds the ancestor walk used for cycle detection, the
// same defensive cap nodeservice's hierarchy cycle check uses for has_child.
const maxAncestorScan = 1000

// AddToCollection implements add_to_collection (§4.9): validates that
// collectionID names a collection node and memberID exists, rejects a
// member_of edge that would create a cycle in the collection DAG, then
// writes the edge idempotently through the node service.
func (s *Service) AddToCollection(ctx context.Context, memberID, collectionID string) error {
	if memberID == collectionID {
		return &store.CircularReferenceError{NodeID: memberID}
	}

	target, err := s.nodes.GetNode(ctx, collectionID)
	if err != nil {
		return err
	}
	if target == nil || target.NodeType != store.NodeTypeCollection {
		return &store.InvalidUpdateError{Reason: fmt.Sprintf("%q is not a collection", collectionID)}
	}

	member, err := s.nodes.GetNode(ctx, memberID)
	if err != nil {
		return err
	}
	if member != nil && member.NodeType == store.NodeTypeCollection {
		cyclic, err := s.wouldCycle(ctx, memberID, collectionID)
		if err != nil {
			return err
		}
		if cyclic {
			return &store.CircularReferenceError{NodeID: memberID}
		}
	}

	return s.nodes.AddMembership(ctx, memberID, collectionID)
}

// RemoveFromCollection implements remove_from_collection: deletes the
// specific member_of edge.
func (s *Service) RemoveFromCollection(ctx context.Context, memberID, collectionID string) error {
	return s.nodes.RemoveMembership(ctx, memberID, collectionID)
}

// wouldCycle reports whether linking memberID -> collectionID would create
// a cycle: true iff memberID is already reachable by walking up
// collectionID's own ancestors (collectionID's parents, their parents, and
// so on — the DAG allows multiple parents per node, so every branch is
// explored, not just the first).
func (s *Service) wouldCycle(ctx context.Context, memberID, collectionID string) (bool, error) {
	visited := map[string]bool{}
	frontier := []string{collectionID}

	for hops := 0; len(frontier) > 0 && hops < maxAncestorScan; hops++ {
		var next []string
		for _, id := range frontier {
			if id == memberID {
				return true, nil
			}
			if visited[id] {
				continue
			}
			visited[id] = true
			parents, err := s.nodes.GetCollectionsFor(ctx, id)
			if err != nil {
				return false, err
			}
			next = append(next, parents...)
		}
		frontier = next
	}
	return false, nil
}
