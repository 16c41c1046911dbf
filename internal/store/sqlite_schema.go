package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateSchemaNodeAtomic runs ddl (the new type's spoke/relation table
// statements) and the schema node's insert inside one transaction, so a
// failing DDL statement leaves no partially-created schema node behind and
// vice versa. ddl statements that fail because their target already exists
// are tolerated, mirroring ExecDDL's idempotent-sync contract.
func (s *SQLiteStore) CreateSchemaNodeAtomic(ctx context.Context, n *Node, ddl []string, sourceClientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: create schema node %q: begin transaction: %w", n.ID, err)
	}
	defer tx.Rollback()

	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if isAlreadyExistsError(err) {
				continue
			}
			return fmt.Errorf("store: create schema node %q: exec ddl %q: %w", n.ID, stmt, err)
		}
	}

	if n.Properties == nil {
		n.Properties = []byte("{}")
	}
	now := nowUnix()
	n.Version = 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (id, node_type, content, version, created_at, modified_at, properties, title, lifecycle_status)
		VALUES (?, 'schema', ?, 1, ?, ?, ?, ?, 'active')
	`, n.ID, n.Content, now, now, string(n.Properties), nullableString(n.Title)); err != nil {
		return fmt.Errorf("store: create schema node %q: %w", n.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: create schema node %q: commit: %w", n.ID, err)
	}

	s.fireChange(StoreChange{Operation: ChangeCreated, NodeID: n.ID, Node: n.Clone(), SourceClientID: sourceClientID})
	return nil
}

// UpdateSchemaNodeAtomic runs ddl (the changed type's spoke/relation table
// sync statements) and the schema node's version-checked update inside one
// transaction. A version mismatch, or a DDL failure that isn't an
// already-exists tolerance case, rolls back the whole thing — neither the
// DDL nor the node write is left half-applied.
func (s *SQLiteStore) UpdateSchemaNodeAtomic(ctx context.Context, n *Node, expectedVersion int, ddl []string, sourceClientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getNodeLocked(ctx, n.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NodeNotFoundError{ID: n.ID}
	}
	if existing.Version != expectedVersion {
		return &VersionConflictError{NodeID: n.ID, ExpectedVersion: expectedVersion, ActualVersion: existing.Version}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: update schema node %q: begin transaction: %w", n.ID, err)
	}
	defer tx.Rollback()

	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if isAlreadyExistsError(err) {
				continue
			}
			return fmt.Errorf("store: update schema node %q: exec ddl %q: %w", n.ID, stmt, err)
		}
	}

	if n.Properties == nil {
		n.Properties = []byte("{}")
	}
	n.Version = existing.Version + 1
	now := nowUnix()
	res, err := tx.ExecContext(ctx,
		"UPDATE nodes SET content = ?, properties = ?, version = ?, modified_at = ? WHERE id = ? AND version = ?",
		n.Content, string(n.Properties), n.Version, now, n.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("store: update schema node %q: %w", n.ID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &VersionConflictError{NodeID: n.ID, ExpectedVersion: expectedVersion, ActualVersion: n.Version - 1}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: update schema node %q: commit: %w", n.ID, err)
	}

	s.fireChange(StoreChange{Operation: ChangeUpdated, NodeID: n.ID, Node: n.Clone(), SourceClientID: sourceClientID})
	return nil
}

// SaveSchemaNode persists a schema definition as a hub node of type
// "schema" (n.Content carries the JSON-encoded schema.Definition). It is
// an upsert keyed on n.ID so schema edits reuse the same node across
// versions.
func (s *SQLiteStore) SaveSchemaNode(ctx context.Context, n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getNodeLocked(ctx, n.ID)
	if err != nil {
		return err
	}

	if n.Properties == nil {
		n.Properties = []byte("{}")
	}
	now := nowUnix()

	if existing == nil {
		n.Version = 1
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO nodes (id, node_type, content, version, created_at, modified_at, properties, title, lifecycle_status)
			VALUES (?, 'schema', ?, 1, ?, ?, ?, ?, 'active')
		`, n.ID, n.Content, now, now, string(n.Properties), nullableString(n.Title))
		if err != nil {
			return fmt.Errorf("store: save schema node %q: %w", n.ID, err)
		}
		return nil
	}

	n.Version = existing.Version + 1
	_, err = s.db.ExecContext(ctx,
		"UPDATE nodes SET content = ?, properties = ?, version = ?, modified_at = ? WHERE id = ?",
		n.Content, string(n.Properties), n.Version, now, n.ID)
	if err != nil {
		return fmt.Errorf("store: save schema node %q: %w", n.ID, err)
	}
	return nil
}

// GetSchemaNode returns the schema node for typeName (its node id), or nil
// if no schema has been stored for that type.
func (s *SQLiteStore) GetSchemaNode(ctx context.Context, typeName string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ? AND node_type = 'schema'", typeName)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get schema node %q: %w", typeName, err)
	}
	return n, nil
}

// ListSchemaNodes returns every stored schema node.
func (s *SQLiteStore) ListSchemaNodes(ctx context.Context) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE node_type = 'schema'")
	if err != nil {
		return nil, fmt.Errorf("store: list schema nodes: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list schema nodes: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpsertSpokeRow writes (or overwrites) nodeID's row in a schema's spoke
// table using the pre-encoded columns/values from
// pkg/schema.InsertColumns.
func (s *SQLiteStore) UpsertSpokeRow(ctx context.Context, table, nodeID string, columns []string, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allCols := append([]string{"node"}, columns...)
	allVals := append([]any{nodeID}, values...)

	assignments := make([]string, len(columns))
	for i, c := range columns {
		assignments[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(allVals)), ",")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(node) DO UPDATE SET %s",
		table, strings.Join(allCols, ", "), placeholders, strings.Join(assignments, ", "))

	if _, err := s.db.ExecContext(ctx, query, allVals...); err != nil {
		return fmt.Errorf("store: upsert spoke row in %q for %q: %w", table, nodeID, err)
	}
	return nil
}

// GetSpokeRow reads nodeID's row from a spoke table, returning a map keyed
// by column name (e.g. "f_status") so the caller (pkg/schema's decode
// helpers) can translate it back to a properties map.
func (s *SQLiteStore) GetSpokeRow(ctx context.Context, table, nodeID string, columns []string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE node = ?", strings.Join(columns, ", "), table)
	dest := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	if err := s.db.QueryRowContext(ctx, query, nodeID).Scan(ptrs...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get spoke row in %q for %q: %w", table, nodeID, err)
	}

	out := make(map[string]any, len(columns))
	for i, c := range columns {
		out[c] = dest[i]
	}
	return out, nil
}

// UpdateSpokeRowWithVersion writes nodeID's spoke row and bumps its hub
// version in a single transaction, under the same OCC contract as
// UpdateNode: a version mismatch leaves both tables untouched.
func (s *SQLiteStore) UpdateSpokeRowWithVersion(ctx context.Context, table, nodeID string, expectedVersion int, columns []string, values []any, sourceClientID string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getNodeLocked(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &NodeNotFoundError{ID: nodeID}
	}
	if current.Version != expectedVersion {
		return nil, &VersionConflictError{NodeID: nodeID, ExpectedVersion: expectedVersion, ActualVersion: current.Version}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: update spoke row for %q: %w", nodeID, err)
	}
	defer tx.Rollback()

	allCols := append([]string{"node"}, columns...)
	allVals := append([]any{nodeID}, values...)
	assignments := make([]string, len(columns))
	for i, c := range columns {
		assignments[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(allVals)), ",")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(node) DO UPDATE SET %s",
		table, strings.Join(allCols, ", "), placeholders, strings.Join(assignments, ", "))
	if _, err := tx.ExecContext(ctx, query, allVals...); err != nil {
		return nil, fmt.Errorf("store: update spoke row for %q: %w", nodeID, err)
	}

	now := nowUnix()
	current.Version++
	current.ModifiedAt = time.Unix(now, 0).UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE nodes SET version = ?, modified_at = ? WHERE id = ? AND version = ?",
		current.Version, now, nodeID, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("store: update spoke row for %q: %w", nodeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &VersionConflictError{NodeID: nodeID, ExpectedVersion: expectedVersion, ActualVersion: current.Version - 1}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: update spoke row for %q: %w", nodeID, err)
	}

	s.fireChange(StoreChange{Operation: ChangeUpdated, NodeID: nodeID, Node: current.Clone(), SourceClientID: sourceClientID})
	return current, nil
}
