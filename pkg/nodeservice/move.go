package nodeservice

import (
	"context"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/nodeid"
)

// MoveNode implements §4.7.3: reject moving a date container, verify the
// new parent exists, reject cycles, re-anchor the has_child edge at
// newOrder, and emit EdgeUpdated.
func (s *Service) MoveNode(ctx context.Context, childID, newParentID string, insertAfter *string) error {
	child, err := s.store.GetNode(ctx, childID)
	if err != nil {
		return err
	}
	if child == nil {
		return &store.NodeNotFoundError{ID: childID}
	}
	if child.NodeType == store.NodeTypeDate || nodeid.IsValidDateID(childID) {
		return &store.InvalidParentError{Reason: "date containers cannot be moved"}
	}

	parent, err := s.store.GetNode(ctx, newParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return &store.InvalidParentError{Reason: fmt.Sprintf("parent %q does not exist", newParentID)}
	}

	if err := s.rejectCycle(ctx, childID, newParentID); err != nil {
		return err
	}

	order, err := s.nextOrder(ctx, newParentID, insertAfter)
	if err != nil {
		return err
	}

	if err := s.store.ReparentNode(ctx, childID, newParentID, order); err != nil {
		return err
	}

	ev := s.hierarchyEvent(newParentID, childID, order)
	ev.Kind = eventbus.EdgeUpdated
	s.bus.Publish(ev)

	if rootID, rerr := s.GetRootID(ctx, newParentID); rerr == nil {
		s.queueEmbedding(ctx, rootID)
	}
	return nil
}

// rejectCycle walks get_parent from newParentID looking for childID,
// bounded at 1000 hops — moving a node under its own descendant would
// otherwise create a cycle in has_child.
func (s *Service) rejectCycle(ctx context.Context, childID, newParentID string) error {
	current := newParentID
	for i := 0; i < maxTraversalHops; i++ {
		if current == childID {
			return &store.CircularReferenceError{NodeID: childID}
		}
		parent, err := s.store.GetParentEdge(ctx, current)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		current = parent.ParentID
	}
	return &store.HierarchyViolationError{Reason: "cycle check exceeded 1000 hops"}
}

// MoveNodeWithOCC additionally reads and checks the child's current
// version, then — after the move succeeds — bumps the child's version with
// a no-op content update, so concurrent rearrangements are also detectable
// under OCC.
func (s *Service) MoveNodeWithOCC(ctx context.Context, childID, newParentID string, insertAfter *string, expectedVersion int) (*store.Node, error) {
	return s.moveWithVersionBump(ctx, childID, expectedVersion, func() error {
		return s.MoveNode(ctx, childID, newParentID, insertAfter)
	})
}

// ReorderNodeWithOCC repositions childID among its current siblings without
// changing parent, under the same OCC contract as MoveNodeWithOCC.
func (s *Service) ReorderNodeWithOCC(ctx context.Context, childID string, insertAfter *string, expectedVersion int) (*store.Node, error) {
	return s.moveWithVersionBump(ctx, childID, expectedVersion, func() error {
		parentEdge, err := s.store.GetParentEdge(ctx, childID)
		if err != nil {
			return err
		}
		if parentEdge == nil {
			return &store.InvalidParentError{Reason: fmt.Sprintf("%q has no parent to reorder under", childID)}
		}
		return s.MoveNode(ctx, childID, parentEdge.ParentID, insertAfter)
	})
}

func (s *Service) moveWithVersionBump(ctx context.Context, childID string, expectedVersion int, op func() error) (*store.Node, error) {
	current, err := s.store.GetNode(ctx, childID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &store.NodeNotFoundError{ID: childID}
	}
	if current.Version != expectedVersion {
		return nil, &store.VersionConflictError{NodeID: childID, ExpectedVersion: expectedVersion, ActualVersion: current.Version}
	}

	if err := op(); err != nil {
		return nil, err
	}

	content := current.Content
	return s.store.UpdateNode(ctx, childID, expectedVersion, store.NodeUpdate{Content: &content}, s.clientID)
}
