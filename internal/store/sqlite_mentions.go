package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceOutgoingMentions replaces all of sourceID's outgoing mentions edges
// with the ones implied by targetIDs, in one transaction. rootID tags every
// edge with the root aggregate sourceID belongs to, which is what
// GetMentioningContainerIDs and the embedding pipeline's staleness marking
// key off of.
func (s *SQLiteStore) ReplaceOutgoingMentions(ctx context.Context, sourceID, rootID string, targetIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace mentions from %q: %w", sourceID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM edge_mentions WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("store: replace mentions from %q: %w", sourceID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO edge_mentions (source_id, target_id, root_id) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("store: replace mentions from %q: %w", sourceID, err)
	}
	defer stmt.Close()

	for _, target := range targetIDs {
		if _, err := stmt.ExecContext(ctx, sourceID, target, rootID); err != nil {
			return fmt.Errorf("store: replace mentions from %q to %q: %w", sourceID, target, err)
		}
	}

	return tx.Commit()
}

// GetOutgoingMentions returns sourceID's mentions edges.
func (s *SQLiteStore) GetOutgoingMentions(ctx context.Context, sourceID string) ([]MentionEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT source_id, target_id, root_id FROM edge_mentions WHERE source_id = ?", sourceID)
	if err != nil {
		return nil, fmt.Errorf("store: get outgoing mentions from %q: %w", sourceID, err)
	}
	defer rows.Close()
	return scanMentionRows(rows)
}

// GetIncomingMentions returns every edge pointing at targetID.
func (s *SQLiteStore) GetIncomingMentions(ctx context.Context, targetID string) ([]MentionEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT source_id, target_id, root_id FROM edge_mentions WHERE target_id = ?", targetID)
	if err != nil {
		return nil, fmt.Errorf("store: get incoming mentions to %q: %w", targetID, err)
	}
	defer rows.Close()
	return scanMentionRows(rows)
}

func scanMentionRows(rows *sql.Rows) ([]MentionEdge, error) {
	var out []MentionEdge
	for rows.Next() {
		var e MentionEdge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.RootID); err != nil {
			return nil, fmt.Errorf("store: scan mention edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetMentioningContainerIDs returns the distinct set of root aggregate ids
// that contain a node mentioning targetID — the "what references this"
// view grouped at container granularity rather than fine-grained node
// granularity.
func (s *SQLiteStore) GetMentioningContainerIDs(ctx context.Context, targetID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT root_id FROM edge_mentions WHERE target_id = ?", targetID)
	if err != nil {
		return nil, fmt.Errorf("store: get mentioning containers of %q: %w", targetID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: get mentioning containers of %q: %w", targetID, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
