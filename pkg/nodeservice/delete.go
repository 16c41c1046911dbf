package nodeservice

import (
	"context"

	"github.com/nodespace/core/internal/store"
)

// DeleteNodeWithOCC implements §4.7.4: resolve the root before descending,
// recursively delete every descendant, then version-check delete the node
// itself. Deleting an already-absent node is idempotent. Descendant deletes
// queue the resolved root for re-embedding; deleting a root itself leaves
// its (now orphaned) embedding for the processor to reap.
func (s *Service) DeleteNodeWithOCC(ctx context.Context, id string, expectedVersion int) (store.DeleteResult, error) {
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return store.DeleteResult{}, err
	}
	if n == nil {
		return store.DeleteResult{Existed: false}, nil
	}

	rootID, err := s.GetRootID(ctx, id)
	if err != nil {
		return store.DeleteResult{}, err
	}
	isDescendant := rootID != id

	children, err := s.store.GetChildren(ctx, id)
	if err != nil {
		return store.DeleteResult{}, err
	}
	for _, c := range children {
		if _, err := s.deleteSubtree(ctx, c.ChildID); err != nil {
			return store.DeleteResult{}, err
		}
	}

	res, err := s.store.DeleteNode(ctx, id, expectedVersion, s.clientID)
	if err != nil {
		return store.DeleteResult{}, err
	}
	if !res.Existed {
		return res, nil
	}

	if err := s.store.DeleteHierarchyEdge(ctx, id); err != nil {
		s.log.Warn("nodeservice: failed to clear hierarchy edge after delete", "node_id", id, "error", err)
	}

	if isDescendant {
		s.queueEmbedding(ctx, rootID)
	}
	return res, nil
}

// DeleteDescendants deletes every child of id, and everything beneath each
// child, leaving id itself untouched. Used by the Markdown "replace this
// root's subtree" update path (§4.11.1's update_root_from_markdown), which
// needs to clear a root's contents without deleting the root node whose id
// callers keep referencing afterward. Returns the number of nodes deleted.
func (s *Service) DeleteDescendants(ctx context.Context, id string) (int, error) {
	descendants, err := s.GetDescendants(ctx, id)
	if err != nil {
		return 0, err
	}

	children, err := s.store.GetChildren(ctx, id)
	if err != nil {
		return 0, err
	}
	for _, c := range children {
		if _, err := s.deleteSubtree(ctx, c.ChildID); err != nil {
			return 0, err
		}
	}
	return len(descendants), nil
}

// deleteSubtree deletes id and every descendant without an OCC check —
// used internally for cascading children of a version-checked delete,
// whose own versions are irrelevant once their parent is gone.
func (s *Service) deleteSubtree(ctx context.Context, id string) (store.DeleteResult, error) {
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return store.DeleteResult{}, err
	}
	if n == nil {
		return store.DeleteResult{Existed: false}, nil
	}

	children, err := s.store.GetChildren(ctx, id)
	if err != nil {
		return store.DeleteResult{}, err
	}
	for _, c := range children {
		if _, err := s.deleteSubtree(ctx, c.ChildID); err != nil {
			return store.DeleteResult{}, err
		}
	}

	return s.store.DeleteNode(ctx, id, n.Version, s.clientID)
}
