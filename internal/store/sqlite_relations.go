package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CreateRelationEdge inserts one row into a schema-defined relation table.
// columns/values are the edge-field columns produced by
// pkg/schema.RelationInsertColumns; table must already exist (via ExecDDL).
func (s *SQLiteStore) CreateRelationEdge(ctx context.Context, table string, e RelationEdge, columns []string, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Version == 0 {
		e.Version = 1
	}

	allCols := append([]string{"in_node", "out_node", "created_at", "version"}, columns...)
	allVals := append([]any{e.SourceID, e.TargetID, e.CreatedAt.Unix(), e.Version}, values...)

	placeholders := strings.TrimRight(strings.Repeat("?,", len(allVals)), ",")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(allCols, ", "), placeholders)

	if _, err := s.db.ExecContext(ctx, query, allVals...); err != nil {
		return fmt.Errorf("store: create relation edge in %q (%q->%q): %w", table, e.SourceID, e.TargetID, err)
	}
	return nil
}

// DeleteRelationEdge removes one (sourceID, targetID) edge from table.
func (s *SQLiteStore) DeleteRelationEdge(ctx context.Context, table, sourceID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := fmt.Sprintf("DELETE FROM %s WHERE in_node = ? AND out_node = ?", table)
	if _, err := s.db.ExecContext(ctx, query, sourceID, targetID); err != nil {
		return fmt.Errorf("store: delete relation edge in %q (%q->%q): %w", table, sourceID, targetID, err)
	}
	return nil
}

// GetRelatedNodeIDs returns the ids reachable from nodeID across table's
// relation edges, following the out direction (nodeID is in_node) when
// outgoing is true, or the in direction otherwise.
func (s *SQLiteStore) GetRelatedNodeIDs(ctx context.Context, table, nodeID string, outgoing bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var query string
	if outgoing {
		query = fmt.Sprintf("SELECT out_node FROM %s WHERE in_node = ?", table)
	} else {
		query = fmt.Sprintf("SELECT in_node FROM %s WHERE out_node = ?", table)
	}

	rows, err := s.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: get related nodes in %q for %q: %w", table, nodeID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: get related nodes in %q for %q: %w", table, nodeID, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
