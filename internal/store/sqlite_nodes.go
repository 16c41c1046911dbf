package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CreateNode inserts a new node at version 1. n.Version, n.CreatedAt and
// n.ModifiedAt are set by this call.
func (s *SQLiteStore) CreateNode(ctx context.Context, n *Node, sourceClientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.Properties == nil {
		n.Properties = json.RawMessage("{}")
	}
	n.Version = 1
	now := time.Now().UTC()
	n.CreatedAt = now
	n.ModifiedAt = now
	if n.LifecycleStatus == "" {
		n.LifecycleStatus = LifecycleActive
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (id, node_type, content, version, created_at, modified_at, properties, title, lifecycle_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.NodeType, n.Content, n.Version, n.CreatedAt.Unix(), n.ModifiedAt.Unix(),
		string(n.Properties), nullableString(n.Title), string(n.LifecycleStatus))
	if err != nil {
		return fmt.Errorf("store: create node %q: %w", n.ID, err)
	}

	s.fireChange(StoreChange{Operation: ChangeCreated, NodeID: n.ID, Node: n.Clone(), SourceClientID: sourceClientID})
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// scanNode reads one row from a *sql.Row or *sql.Rows positioned at the
// standard node column order.
func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	var n Node
	var createdAt, modifiedAt int64
	var title sql.NullString
	var properties string
	var lifecycle string

	err := row.Scan(&n.ID, &n.NodeType, &n.Content, &n.Version, &createdAt, &modifiedAt,
		&properties, &title, &lifecycle)
	if err != nil {
		return nil, err
	}

	n.CreatedAt = time.Unix(createdAt, 0).UTC()
	n.ModifiedAt = time.Unix(modifiedAt, 0).UTC()
	n.Properties = json.RawMessage(properties)
	if title.Valid {
		n.Title = title.String
	}
	n.LifecycleStatus = LifecycleStatus(lifecycle)
	return &n, nil
}

const nodeColumns = `id, node_type, content, version, created_at, modified_at, properties, title, lifecycle_status`

// GetNode returns the node, or (nil, nil) if it doesn't exist.
func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get node %q: %w", id, err)
	}
	return n, nil
}

// UpdateNode applies a partial update under optimistic concurrency control:
// the caller's expectedVersion must match the stored version, or a
// VersionConflictError is returned. Returns the updated node.
func (s *SQLiteStore) UpdateNode(ctx context.Context, id string, expectedVersion int, update NodeUpdate, sourceClientID string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getNodeLocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &NodeNotFoundError{ID: id}
	}
	if current.Version != expectedVersion {
		return nil, &VersionConflictError{NodeID: id, ExpectedVersion: expectedVersion, ActualVersion: current.Version}
	}

	if update.NodeType != nil {
		current.NodeType = *update.NodeType
	}
	if update.Content != nil {
		current.Content = *update.Content
	}
	if update.Title.Set {
		if update.Title.Value == nil {
			current.Title = ""
		} else {
			current.Title = *update.Title.Value
		}
	}
	if len(update.Properties) > 0 {
		merged, err := mergeProperties(current.Properties, update.Properties)
		if err != nil {
			return nil, &InvalidPropertiesError{Reason: err.Error()}
		}
		current.Properties = merged
	}

	current.Version++
	current.ModifiedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE nodes SET node_type = ?, content = ?, properties = ?, title = ?, version = ?, modified_at = ?
		WHERE id = ? AND version = ?
	`, current.NodeType, current.Content, string(current.Properties), nullableString(current.Title),
		current.Version, current.ModifiedAt.Unix(), id, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("store: update node %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("store: update node %q: %w", id, err)
	}
	if n == 0 {
		return nil, &VersionConflictError{NodeID: id, ExpectedVersion: expectedVersion, ActualVersion: current.Version - 1}
	}

	s.fireChange(StoreChange{Operation: ChangeUpdated, NodeID: id, Node: current.Clone(), SourceClientID: sourceClientID})
	return current, nil
}

func mergeProperties(existing json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, fmt.Errorf("decode existing properties: %w", err)
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged properties: %w", err)
	}
	return encoded, nil
}

// getNodeLocked is GetNode without acquiring the lock, for callers that
// already hold it.
func (s *SQLiteStore) getNodeLocked(ctx context.Context, id string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get node %q: %w", id, err)
	}
	return n, nil
}

// DeleteNode removes a node under OCC. Deleting an already-absent node is
// idempotent: DeleteResult.Existed is false and no error is returned.
func (s *SQLiteStore) DeleteNode(ctx context.Context, id string, expectedVersion int, sourceClientID string) (DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getNodeLocked(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if current == nil {
		return DeleteResult{Existed: false}, nil
	}
	if current.Version != expectedVersion {
		return DeleteResult{}, &VersionConflictError{NodeID: id, ExpectedVersion: expectedVersion, ActualVersion: current.Version}
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM nodes WHERE id = ? AND version = ?", id, expectedVersion); err != nil {
		return DeleteResult{}, fmt.Errorf("store: delete node %q: %w", id, err)
	}

	s.fireChange(StoreChange{Operation: ChangeDeleted, NodeID: id, SourceClientID: sourceClientID})
	return DeleteResult{Existed: true}, nil
}

// SetLifecycleStatus transitions a node between active/archived/deleted
// without bumping its version — lifecycle is presentation state, not
// content.
func (s *SQLiteStore) SetLifecycleStatus(ctx context.Context, id string, status LifecycleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE nodes SET lifecycle_status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("store: set lifecycle status on %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NodeNotFoundError{ID: id}
	}
	return nil
}

// ListNodes runs a filtered, paginated scan over the hub table.
func (s *SQLiteStore) ListNodes(ctx context.Context, filter NodeFilter) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + nodeColumns + " FROM nodes WHERE 1=1"
	var args []any

	if filter.NodeType != nil {
		query += " AND node_type = ?"
		args = append(args, *filter.NodeType)
	}
	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " AND id IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.ContentContains != nil {
		query += " AND content LIKE ?"
		args = append(args, "%"+*filter.ContentContains+"%")
	}
	if filter.CreatedAfter != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.CreatedAfter.Unix())
	}
	if filter.CreatedBefore != nil {
		query += " AND created_at <= ?"
		args = append(args, filter.CreatedBefore.Unix())
	}
	if filter.ModifiedAfter != nil {
		query += " AND modified_at >= ?"
		args = append(args, filter.ModifiedAfter.Unix())
	}
	if filter.ModifiedBefore != nil {
		query += " AND modified_at <= ?"
		args = append(args, filter.ModifiedBefore.Unix())
	}
	for _, pf := range filter.PropertyFilters {
		clause, arg, err := propertyFilterClause(pf)
		if err != nil {
			return nil, err
		}
		query += " AND " + clause
		args = append(args, arg)
	}

	query += " ORDER BY " + orderByClause(filter.OrderBy)

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list nodes: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list nodes: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListTitledNodes returns id/title/node_type for every active node whose
// title is set, ordered by id for a stable dictionary rebuild.
func (s *SQLiteStore) ListTitledNodes(ctx context.Context) ([]TitledNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, node_type FROM nodes WHERE title IS NOT NULL AND title != '' AND lifecycle_status = 'active' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list titled nodes: %w", err)
	}
	defer rows.Close()

	var out []TitledNode
	for rows.Next() {
		var t TitledNode
		if err := rows.Scan(&t.ID, &t.Title, &t.NodeType); err != nil {
			return nil, fmt.Errorf("store: list titled nodes: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func propertyFilterClause(pf PropertyFilter) (string, any, error) {
	path := strings.TrimPrefix(pf.Path, "$")
	path = "$" + path
	switch pf.Operator {
	case OpEquals:
		return fmt.Sprintf("json_extract(properties, '%s') = ?", path), pf.Value, nil
	case OpNotEquals:
		return fmt.Sprintf("json_extract(properties, '%s') != ?", path), pf.Value, nil
	case OpGreaterThan:
		return fmt.Sprintf("json_extract(properties, '%s') > ?", path), pf.Value, nil
	case OpLessThan:
		return fmt.Sprintf("json_extract(properties, '%s') < ?", path), pf.Value, nil
	case OpContains:
		return fmt.Sprintf("json_extract(properties, '%s') LIKE ?", path), fmt.Sprintf("%%%v%%", pf.Value), nil
	case OpStartsWith:
		return fmt.Sprintf("json_extract(properties, '%s') LIKE ?", path), fmt.Sprintf("%v%%", pf.Value), nil
	case OpEndsWith:
		return fmt.Sprintf("json_extract(properties, '%s') LIKE ?", path), fmt.Sprintf("%%%v", pf.Value), nil
	default:
		return "", nil, fmt.Errorf("store: unsupported filter operator %q", pf.Operator)
	}
}

func orderByClause(ob *OrderBy) string {
	if ob == nil {
		return "modified_at DESC"
	}
	var field string
	switch ob.Field {
	case OrderByCreatedAt:
		field = "created_at"
	case OrderByContent:
		field = "content"
	case OrderByNodeType:
		field = "node_type"
	default:
		field = "modified_at"
	}
	if ob.Ascending {
		return field + " ASC"
	}
	return field + " DESC"
}
