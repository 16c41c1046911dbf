package eventbus

// Kind enumerates the event types carried on the bus.
type Kind string

const (
	NodeCreated         Kind = "node_created"
	NodeUpdated         Kind = "node_updated"
	NodeDeleted         Kind = "node_deleted"
	EdgeCreated         Kind = "edge_created"
	EdgeUpdated         Kind = "edge_updated"
	EdgeDeleted         Kind = "edge_deleted"
	RelationshipCreated Kind = "relationship_created"
	RelationshipDeleted Kind = "relationship_deleted"
)

// EdgeRelationship carries the edge-kind-specific payload for Edge* events.
type EdgeRelationship struct {
	Kind         string // "has_child" | "mentions" | "member_of" | "relation"
	ParentID     string
	ChildID      string
	SourceID     string
	TargetID     string
	RootID       string
	CollectionID string
	Order        float64
	RelationName string
}

// Event is one message delivered to every subscriber of the bus.
type Event struct {
	Kind Kind

	NodeID string
	Data   any // *store.Node for Node* events

	Edge EdgeRelationship

	// SourceClientID tags which client produced the mutation, so that
	// client can suppress its own echo when it receives the event back.
	SourceClientID string
}
