package store

import (
	"context"
	"fmt"
	"time"
)

// AddMembership links a member to a collection. A member may belong to
// several collections at once — membership forms a DAG, not a tree.
func (s *SQLiteStore) AddMembership(ctx context.Context, e MembershipEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO edge_member_of (member_id, collection_id, created_at) VALUES (?, ?, ?)",
		e.MemberID, e.CollectionID, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store: add membership %q->%q: %w", e.MemberID, e.CollectionID, err)
	}
	return nil
}

// RemoveMembership unlinks a member from a collection. Idempotent.
func (s *SQLiteStore) RemoveMembership(ctx context.Context, memberID, collectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM edge_member_of WHERE member_id = ? AND collection_id = ?", memberID, collectionID)
	if err != nil {
		return fmt.Errorf("store: remove membership %q->%q: %w", memberID, collectionID, err)
	}
	return nil
}

// GetMembers returns every member id of collectionID.
func (s *SQLiteStore) GetMembers(ctx context.Context, collectionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryIDs(ctx, "SELECT member_id FROM edge_member_of WHERE collection_id = ?", collectionID)
}

// GetCollectionsFor returns every collection memberID directly belongs to.
func (s *SQLiteStore) GetCollectionsFor(ctx context.Context, memberID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryIDs(ctx, "SELECT collection_id FROM edge_member_of WHERE member_id = ?", memberID)
}

// CountMembers returns the number of direct members of collectionID.
func (s *SQLiteStore) CountMembers(ctx context.Context, collectionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM edge_member_of WHERE collection_id = ?", collectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count members of %q: %w", collectionID, err)
	}
	return count, nil
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("store: query ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: query ids: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
