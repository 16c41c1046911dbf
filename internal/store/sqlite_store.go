package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

func nowUnix() int64 {
	return time.Now().UTC().Unix()
}

// SQLiteStore is the SQLite-backed implementation of Store. Safe for
// concurrent use from multiple goroutines.
type SQLiteStore struct {
	mu  sync.RWMutex
	db  *sql.DB
	log *slog.Logger

	notifyMu sync.RWMutex
	notify   Notifier
}

// schema defines the hub table, the three built-in edge tables, the
// embedding-staleness queue, and the vec0 vector table. Spoke tables and
// relation edge tables are created later, per schema, by ExecDDL.
const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    node_type TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    modified_at INTEGER NOT NULL,
    properties TEXT NOT NULL DEFAULT '{}',
    title TEXT,
    lifecycle_status TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);
CREATE INDEX IF NOT EXISTS idx_nodes_lifecycle ON nodes(lifecycle_status);
CREATE INDEX IF NOT EXISTS idx_nodes_modified ON nodes(modified_at);

-- has_child: single-parent hierarchy, fractional order for sibling sort.
CREATE TABLE IF NOT EXISTS edge_has_child (
    parent_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    child_id  TEXT NOT NULL UNIQUE REFERENCES nodes(id) ON DELETE CASCADE,
    "order"   REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_has_child_parent ON edge_has_child(parent_id, "order");

-- mentions: directed reference, rooted at the containing root aggregate.
CREATE TABLE IF NOT EXISTS edge_mentions (
    source_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    target_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    root_id   TEXT NOT NULL,
    PRIMARY KEY (source_id, target_id)
);

CREATE INDEX IF NOT EXISTS idx_mentions_target ON edge_mentions(target_id);
CREATE INDEX IF NOT EXISTS idx_mentions_root ON edge_mentions(root_id);

-- member_of: collection membership, many-to-many (a DAG, not a tree).
CREATE TABLE IF NOT EXISTS edge_member_of (
    member_id     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    collection_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    created_at    INTEGER NOT NULL,
    PRIMARY KEY (member_id, collection_id)
);

CREATE INDEX IF NOT EXISTS idx_member_of_collection ON edge_member_of(collection_id);

-- Embedding staleness queue: one row per root aggregate that needs
-- re-embedding. Rows are deleted once claimed and embedded.
CREATE TABLE IF NOT EXISTS embedding_stale (
    root_id    TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
    marked_at  INTEGER NOT NULL,
    claimed_at INTEGER
);

CREATE TABLE IF NOT EXISTS embedding_done (
    root_id TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE
);
`

// NewSQLiteStore opens an in-memory store, useful for tests.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN opens (and migrates) a store at dsn. Use ":memory:"
// for ephemeral storage or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1) // ncruces/go-sqlite3 connections are not shareable across goroutines

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	if err := ensureVectorTable(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, log: slog.Default()}, nil
}

// ensureVectorTable creates the vec0 virtual table used to store root-
// aggregate embedding vectors. A fixed 768-dimension float vector matches
// the default dimensionality of the embedding providers wired in
// pkg/embedding; providers that return a different width are rejected at
// write time rather than silently truncated.
func ensureVectorTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS embedding_vectors USING vec0(
		root_id TEXT PRIMARY KEY,
		embedding FLOAT[768]
	)`)
	if err != nil {
		return fmt.Errorf("store: create vector table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetNotifier installs the callback invoked after every committed mutation.
func (s *SQLiteStore) SetNotifier(n Notifier) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notify = n
}

func (s *SQLiteStore) fireChange(c StoreChange) {
	s.notifyMu.RLock()
	n := s.notify
	s.notifyMu.RUnlock()
	if n != nil {
		n(c)
	}
}

// ExecDDL runs statements inside one transaction. Statements that fail
// because the target already exists (duplicate table/column/index) are
// tolerated so schema sync stays idempotent and additive, mirroring the
// "IF NOT EXISTS" contract pkg/schema's generator documents but SQLite's
// ADD COLUMN grammar does not literally support.
func (s *SQLiteStore) ExecDDL(ctx context.Context, statements []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin ddl transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if isAlreadyExistsError(err) {
				continue
			}
			return fmt.Errorf("store: exec ddl %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

// isAlreadyExistsError reports whether err is SQLite's complaint about a
// column, table, or index that is already there — the signal that lets
// additive schema sync stay idempotent.
func isAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate column name") ||
		strings.Contains(msg, "already exists")
}
