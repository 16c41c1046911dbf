package store

import "context"

// Store is the persistence contract (C3) that every service in this module
// is built against. The only implementation is the SQLite-backed one in
// this package, but callers depend on the interface so the node/schema/
// collection services stay storage-agnostic in the same way the rest of
// the corpus keeps its service layer independent of its store package.
type Store interface {
	// Node CRUD (C2 hub). sourceClientID tags the StoreChange delivered to
	// the notifier so the originating client can suppress its own echo.
	CreateNode(ctx context.Context, n *Node, sourceClientID string) error
	GetNode(ctx context.Context, id string) (*Node, error)
	UpdateNode(ctx context.Context, id string, expectedVersion int, update NodeUpdate, sourceClientID string) (*Node, error)
	DeleteNode(ctx context.Context, id string, expectedVersion int, sourceClientID string) (DeleteResult, error)
	ListNodes(ctx context.Context, filter NodeFilter) ([]*Node, error)
	SetLifecycleStatus(ctx context.Context, id string, status LifecycleStatus) error

	// ListTitledNodes returns every active node with a non-empty title, for
	// building the title-autocomplete dictionary (C11-adjacent supplement).
	ListTitledNodes(ctx context.Context) ([]TitledNode, error)

	// Hierarchy (has_child edges).
	CreateHierarchyEdge(ctx context.Context, e HierarchyEdge) error
	DeleteHierarchyEdge(ctx context.Context, childID string) error
	GetParentEdge(ctx context.Context, childID string) (*HierarchyEdge, error)
	GetChildren(ctx context.Context, parentID string) ([]HierarchyEdge, error)
	ReparentNode(ctx context.Context, childID, newParentID string, newOrder float64) error
	GetSubtreeIDs(ctx context.Context, rootID string) ([]string, error)
	BulkCreateHierarchy(ctx context.Context, nodes []*Node, edges []HierarchyEdge, sourceClientID string) error

	// Mentions.
	ReplaceOutgoingMentions(ctx context.Context, sourceID, rootID string, targetIDs []string) error
	GetOutgoingMentions(ctx context.Context, sourceID string) ([]MentionEdge, error)
	GetIncomingMentions(ctx context.Context, targetID string) ([]MentionEdge, error)
	GetMentioningContainerIDs(ctx context.Context, targetID string) ([]string, error)

	// Membership (member_of edges / collection DAG).
	AddMembership(ctx context.Context, e MembershipEdge) error
	RemoveMembership(ctx context.Context, memberID, collectionID string) error
	GetMembers(ctx context.Context, collectionID string) ([]string, error)
	GetCollectionsFor(ctx context.Context, memberID string) ([]string, error)
	CountMembers(ctx context.Context, collectionID string) (int, error)

	// Schema-defined relation edges.
	ExecDDL(ctx context.Context, statements []string) error
	CreateRelationEdge(ctx context.Context, table string, e RelationEdge, columns []string, values []any) error
	DeleteRelationEdge(ctx context.Context, table, sourceID, targetID string) error
	GetRelatedNodeIDs(ctx context.Context, table, nodeID string, outgoing bool) ([]string, error)

	// Schema definition storage and spoke-row access (C4).
	//
	// CreateSchemaNodeAtomic/UpdateSchemaNodeAtomic run the spoke/relation
	// DDL statements and the schema node's own hub-table write inside one
	// shared transaction: either every DDL statement and the node write
	// commit together, or none of them do. SaveSchemaNode remains for
	// callers (e.g. migration) that only need the node write with no DDL.
	CreateSchemaNodeAtomic(ctx context.Context, n *Node, ddl []string, sourceClientID string) error
	UpdateSchemaNodeAtomic(ctx context.Context, n *Node, expectedVersion int, ddl []string, sourceClientID string) error
	SaveSchemaNode(ctx context.Context, n *Node) error
	GetSchemaNode(ctx context.Context, typeName string) (*Node, error)
	ListSchemaNodes(ctx context.Context) ([]*Node, error)
	UpsertSpokeRow(ctx context.Context, table, nodeID string, columns []string, values []any) error
	GetSpokeRow(ctx context.Context, table, nodeID string, columns []string) (map[string]any, error)

	// UpdateSpokeRowWithVersion writes a spoke row and bumps the hub node's
	// version in the same transaction, under OCC — the typed-update path
	// (e.g. task status) needs both to succeed or neither to.
	UpdateSpokeRowWithVersion(ctx context.Context, table, nodeID string, expectedVersion int, columns []string, values []any, sourceClientID string) (*Node, error)

	// Embedding staleness/storage (C11).
	MarkRootStale(ctx context.Context, rootID string) error
	ClaimStaleRoots(ctx context.Context, limit int) ([]string, error)
	WriteEmbedding(ctx context.Context, rootID string, vector []float32) error
	HasEmbedding(ctx context.Context, rootID string) (bool, error)
	ListOrphanedEmbeddings(ctx context.Context, limit int) ([]string, error)
	DeleteEmbedding(ctx context.Context, rootID string) error

	SetNotifier(n Notifier)
	Close() error
}
