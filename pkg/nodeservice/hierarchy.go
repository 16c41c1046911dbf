package nodeservice

import (
	"context"

	"github.com/nodespace/core/internal/store"
)

// GetChildren returns parentID's direct children ordered by edge order.
func (s *Service) GetChildren(ctx context.Context, parentID string) ([]store.HierarchyEdge, error) {
	return s.store.GetChildren(ctx, parentID)
}

// GetDescendants BFS-traverses rootID's subtree and returns every
// descendant id, excluding rootID itself.
func (s *Service) GetDescendants(ctx context.Context, rootID string) ([]string, error) {
	ids, err := s.store.GetSubtreeIDs(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids[1:], nil
}

// SubtreeData is the primitive behind get_children_tree and the exporter: a
// fetched subtree's nodes and child ordering, assembled from one recursive
// query plus one filtered node list.
type SubtreeData struct {
	Root     *store.Node
	Nodes    map[string]*store.Node
	Children map[string][]string // parent id -> child ids, in order
}

// GetSubtreeData fetches rootID's entire subtree in one shot: the set of
// node records plus the parent->ordered-children adjacency, so callers
// don't re-query per node.
func (s *Service) GetSubtreeData(ctx context.Context, rootID string) (*SubtreeData, error) {
	ids, err := s.store.GetSubtreeIDs(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &store.NodeNotFoundError{ID: rootID}
	}

	nodes := make(map[string]*store.Node, len(ids))
	for _, id := range ids {
		n, err := s.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		nodes[id] = n
	}

	children := make(map[string][]string, len(ids))
	for _, id := range ids {
		edges, err := s.store.GetChildren(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			continue
		}
		ordered := make([]string, len(edges))
		for i, e := range edges {
			ordered[i] = e.ChildID
		}
		children[id] = ordered
	}

	return &SubtreeData{Root: nodes[rootID], Nodes: nodes, Children: children}, nil
}

// GetRootID walks get_parent from node until a node with no parent is
// found, bounded at 1000 hops to survive corrupted hierarchy state.
func (s *Service) GetRootID(ctx context.Context, node string) (string, error) {
	current := node
	for i := 0; i < maxTraversalHops; i++ {
		parent, err := s.store.GetParentEdge(ctx, current)
		if err != nil {
			return "", err
		}
		if parent == nil {
			return current, nil
		}
		current = parent.ParentID
	}
	return "", &store.HierarchyViolationError{Reason: "get_root_id exceeded 1000 hops, possible cycle"}
}

// maxTraversalHops bounds every hierarchy traversal (root resolution, cycle
// detection) to guard against runaway loops over corrupted has_child state.
const maxTraversalHops = 1000
