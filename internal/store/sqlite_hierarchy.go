package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CreateHierarchyEdge links a child to a parent. Each child has exactly one
// parent, enforced by the UNIQUE constraint on child_id.
func (s *SQLiteStore) CreateHierarchyEdge(ctx context.Context, e HierarchyEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO edge_has_child (parent_id, child_id, "order") VALUES (?, ?, ?)`,
		e.ParentID, e.ChildID, e.Order)
	if err != nil {
		return fmt.Errorf("store: create hierarchy edge %q->%q: %w", e.ParentID, e.ChildID, err)
	}
	return nil
}

// DeleteHierarchyEdge removes childID's parent link, if any.
func (s *SQLiteStore) DeleteHierarchyEdge(ctx context.Context, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM edge_has_child WHERE child_id = ?", childID); err != nil {
		return fmt.Errorf("store: delete hierarchy edge for %q: %w", childID, err)
	}
	return nil
}

// GetParentEdge returns childID's parent edge, or nil if childID is a root.
func (s *SQLiteStore) GetParentEdge(ctx context.Context, childID string) (*HierarchyEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e HierarchyEdge
	e.ChildID = childID
	err := s.db.QueryRowContext(ctx,
		`SELECT parent_id, "order" FROM edge_has_child WHERE child_id = ?`, childID).
		Scan(&e.ParentID, &e.Order)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get parent of %q: %w", childID, err)
	}
	return &e, nil
}

// GetChildren returns parentID's direct children, ordered by their
// fractional sort order.
func (s *SQLiteStore) GetChildren(ctx context.Context, parentID string) ([]HierarchyEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT parent_id, child_id, "order" FROM edge_has_child WHERE parent_id = ? ORDER BY "order" ASC`,
		parentID)
	if err != nil {
		return nil, fmt.Errorf("store: get children of %q: %w", parentID, err)
	}
	defer rows.Close()

	var out []HierarchyEdge
	for rows.Next() {
		var e HierarchyEdge
		if err := rows.Scan(&e.ParentID, &e.ChildID, &e.Order); err != nil {
			return nil, fmt.Errorf("store: get children of %q: %w", parentID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReparentNode moves childID under newParentID at newOrder, replacing any
// existing parent link. Cycle detection is the caller's responsibility
// (pkg/nodeservice walks the ancestor chain before calling this).
func (s *SQLiteStore) ReparentNode(ctx context.Context, childID, newParentID string, newOrder float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: reparent %q: %w", childID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM edge_has_child WHERE child_id = ?", childID); err != nil {
		return fmt.Errorf("store: reparent %q: %w", childID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO edge_has_child (parent_id, child_id, "order") VALUES (?, ?, ?)`,
		newParentID, childID, newOrder); err != nil {
		return fmt.Errorf("store: reparent %q: %w", childID, err)
	}
	return tx.Commit()
}

// GetSubtreeIDs returns rootID followed by every descendant id, in
// breadth-first order, via a recursive CTE over edge_has_child.
func (s *SQLiteStore) GetSubtreeIDs(ctx context.Context, rootID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE subtree(id, depth) AS (
			SELECT ?, 0
			UNION ALL
			SELECT c.child_id, subtree.depth + 1
			FROM edge_has_child c JOIN subtree ON c.parent_id = subtree.id
		)
		SELECT id FROM subtree ORDER BY depth ASC
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("store: get subtree of %q: %w", rootID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: get subtree of %q: %w", rootID, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// BulkCreateHierarchy inserts a batch of nodes and their has_child edges in
// a single transaction — the hot path for Markdown import, where a whole
// document tree must appear atomically or not at all.
func (s *SQLiteStore) BulkCreateHierarchy(ctx context.Context, nodes []*Node, edges []HierarchyEdge, sourceClientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: bulk create hierarchy: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, node_type, content, version, created_at, modified_at, properties, title, lifecycle_status)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, 'active')
	`)
	if err != nil {
		return fmt.Errorf("store: bulk create hierarchy: %w", err)
	}
	defer nodeStmt.Close()

	for _, n := range nodes {
		if n.Properties == nil {
			n.Properties = json.RawMessage("{}")
		}
		n.Version = 1
		n.CreatedAt = now
		n.ModifiedAt = now
		if n.LifecycleStatus == "" {
			n.LifecycleStatus = LifecycleActive
		}
		if _, err := nodeStmt.ExecContext(ctx, n.ID, n.NodeType, n.Content, now.Unix(), now.Unix(),
			string(n.Properties), nullableString(n.Title)); err != nil {
			return fmt.Errorf("store: bulk create hierarchy: insert node %q: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edge_has_child (parent_id, child_id, "order") VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: bulk create hierarchy: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		if _, err := edgeStmt.ExecContext(ctx, e.ParentID, e.ChildID, e.Order); err != nil {
			return fmt.Errorf("store: bulk create hierarchy: insert edge %q->%q: %w", e.ParentID, e.ChildID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: bulk create hierarchy: %w", err)
	}

	for _, n := range nodes {
		s.fireChange(StoreChange{Operation: ChangeCreated, NodeID: n.ID, Node: n.Clone(), SourceClientID: sourceClientID})
	}
	return nil
}
