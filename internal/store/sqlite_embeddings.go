package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
)

// MarkRootStale enqueues rootID for re-embedding. Idempotent — marking an
// already-stale root again is a no-op.
func (s *SQLiteStore) MarkRootStale(ctx context.Context, rootID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding_stale (root_id, marked_at) VALUES (?, ?)
		ON CONFLICT(root_id) DO UPDATE SET marked_at = excluded.marked_at, claimed_at = NULL
	`, rootID, nowUnix())
	if err != nil {
		return fmt.Errorf("store: mark root %q stale: %w", rootID, err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM embedding_done WHERE root_id = ?", rootID); err != nil {
		return fmt.Errorf("store: mark root %q stale: %w", rootID, err)
	}
	return nil
}

// ClaimStaleRoots atomically claims up to limit unclaimed stale roots for
// processing, stamping their claimed_at so a concurrent processor run
// doesn't also pick them up. Callers are expected to delete the row (via
// WriteEmbedding's sibling bookkeeping) once the embedding is written.
func (s *SQLiteStore) ClaimStaleRoots(ctx context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: claim stale roots: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT root_id FROM embedding_stale WHERE claimed_at IS NULL ORDER BY marked_at ASC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("store: claim stale roots: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: claim stale roots: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: claim stale roots: %w", err)
	}

	now := nowUnix()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "UPDATE embedding_stale SET claimed_at = ? WHERE root_id = ?", now, id); err != nil {
			return nil, fmt.Errorf("store: claim stale roots: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: claim stale roots: %w", err)
	}
	return ids, nil
}

// WriteEmbedding stores rootID's vector and marks it no longer stale.
func (s *SQLiteStore) WriteEmbedding(ctx context.Context, rootID string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: write embedding for %q: %w", rootID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM embedding_vectors WHERE root_id = ?", rootID); err != nil {
		return fmt.Errorf("store: write embedding for %q: %w", rootID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO embedding_vectors (root_id, embedding) VALUES (?, ?)",
		rootID, encodeVector(vector)); err != nil {
		return fmt.Errorf("store: write embedding for %q: %w", rootID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM embedding_stale WHERE root_id = ?", rootID); err != nil {
		return fmt.Errorf("store: write embedding for %q: %w", rootID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO embedding_done (root_id) VALUES (?) ON CONFLICT(root_id) DO NOTHING", rootID); err != nil {
		return fmt.Errorf("store: write embedding for %q: %w", rootID, err)
	}

	return tx.Commit()
}

// HasEmbedding reports whether rootID has a non-stale embedding on file.
func (s *SQLiteStore) HasEmbedding(ctx context.Context, rootID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM embedding_done WHERE root_id = ?", rootID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: check embedding for %q: %w", rootID, err)
	}
	return true, nil
}

// ListOrphanedEmbeddings returns up to limit root IDs present in the vector
// table but whose node (and embedding_done bookkeeping row, which cascades
// away with it) no longer exists. embedding_vectors is a vec0 virtual table
// and cannot carry a foreign key, so these rows survive node deletion and
// must be reaped explicitly.
func (s *SQLiteStore) ListOrphanedEmbeddings(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT embedding_vectors.root_id FROM embedding_vectors
		LEFT JOIN nodes ON nodes.id = embedding_vectors.root_id
		WHERE nodes.id IS NULL
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list orphaned embeddings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: list orphaned embeddings: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteEmbedding removes rootID's stored vector, e.g. once ListOrphanedEmbeddings
// has identified it as no longer belonging to a live node.
func (s *SQLiteStore) DeleteEmbedding(ctx context.Context, rootID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM embedding_vectors WHERE root_id = ?", rootID); err != nil {
		return fmt.Errorf("store: delete embedding for %q: %w", rootID, err)
	}
	return nil
}

// encodeVector serializes a float32 vector into the little-endian byte
// layout sqlite-vec's vec0 virtual table expects for a FLOAT[N] column.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4+0] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}
