// Package store provides the hub-spoke graph persistence layer for the
// node/edge knowledge store. It defines the Store contract (C3) and the
// shared data model (C2) that every higher-level service builds on.
package store

import (
	"encoding/json"
	"time"
)

// LifecycleStatus tracks whether a node is visible, archived, or soft-deleted.
type LifecycleStatus string

const (
	LifecycleActive   LifecycleStatus = "active"
	LifecycleArchived LifecycleStatus = "archived"
	LifecycleDeleted  LifecycleStatus = "deleted"
)

// Well-known node types. Any other non-empty string denotes a user-defined
// type governed by a stored schema.
const (
	NodeTypeText       = "text"
	NodeTypeHeader     = "header"
	NodeTypeCodeBlock  = "code-block"
	NodeTypeQuoteBlock = "quote-block"
	NodeTypeOrderedList = "ordered-list"
	NodeTypeTask       = "task"
	NodeTypeDate       = "date"
	NodeTypeSchema     = "schema"
	NodeTypeCollection = "collection"
)

// SchemaVersionKey is the reserved properties key carrying the schema
// version a node's properties were last validated/migrated against.
const SchemaVersionKey = "_schema_version"

// Node is the universal record: the hub of the hub-spoke model.
type Node struct {
	ID         string          `json:"id"`
	NodeType   string          `json:"node_type"`
	Content    string          `json:"content"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	ModifiedAt time.Time       `json:"modified_at"`
	Properties json.RawMessage `json:"properties"`

	// Derived, populated on read — never persisted as columns on the hub row.
	Mentions    []string `json:"mentions,omitempty"`
	MentionedBy []string `json:"mentioned_by,omitempty"`
	MemberOf    []string `json:"member_of,omitempty"`

	Title string `json:"title,omitempty"`

	// LifecycleStatus is omitted on the wire when it equals LifecycleActive.
	LifecycleStatus LifecycleStatus `json:"lifecycle_status,omitempty"`
}

// TitledNode is the minimal projection ListTitledNodes returns: just enough
// to build a title-autocomplete dictionary without paying for every hub
// column on every node in the store.
type TitledNode struct {
	ID       string
	Title    string
	NodeType string
}

// Clone returns a deep-enough copy for safe mutation by callers (Properties
// is copied byte-for-byte; slices are copied).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Properties != nil {
		c.Properties = append(json.RawMessage(nil), n.Properties...)
	}
	c.Mentions = append([]string(nil), n.Mentions...)
	c.MentionedBy = append([]string(nil), n.MentionedBy...)
	c.MemberOf = append([]string(nil), n.MemberOf...)
	return &c
}

// DecodeProperties decodes Properties as a JSON object. Empty/nil
// Properties decodes to an empty map rather than an error.
func (n *Node) DecodeProperties() (map[string]any, error) {
	out := map[string]any{}
	if len(n.Properties) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(n.Properties, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NullableTitle distinguishes "do not touch" from "set to null" for title.
type NullableTitle struct {
	Set   bool
	Value *string
}

// NodeUpdate is a partial update. Properties are merged shallowly over the
// existing properties object; nil fields are left untouched.
type NodeUpdate struct {
	NodeType   *string
	Content    *string
	Properties map[string]any
	Title      NullableTitle
}

// IsEmpty reports whether the update would change nothing.
func (u NodeUpdate) IsEmpty() bool {
	return u.NodeType == nil && u.Content == nil && len(u.Properties) == 0 && !u.Title.Set
}

// OrderBy enumerates the sortable node fields and direction.
type OrderBy struct {
	Field     OrderField
	Ascending bool
}

type OrderField int

const (
	OrderByCreatedAt OrderField = iota
	OrderByModifiedAt
	OrderByContent
	OrderByNodeType
)

// FilterOperator enumerates property-filter comparison operators.
type FilterOperator string

const (
	OpEquals      FilterOperator = "eq"
	OpNotEquals   FilterOperator = "neq"
	OpGreaterThan FilterOperator = "gt"
	OpLessThan    FilterOperator = "lt"
	OpContains    FilterOperator = "contains"
	OpStartsWith  FilterOperator = "starts_with"
	OpEndsWith    FilterOperator = "ends_with"
)

// PropertyFilter matches a JSON path within a node's properties object.
// Path must start with "$" and contain no consecutive or trailing dots.
type PropertyFilter struct {
	Path     string
	Operator FilterOperator
	Value    any
}

// NodeFilter describes a query over the node hub table.
type NodeFilter struct {
	NodeType        *string
	IDs             []string
	ContentContains *string
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
	ModifiedAfter   *time.Time
	ModifiedBefore  *time.Time
	PropertyFilters []PropertyFilter
	OrderBy         *OrderBy
	Limit           int
	Offset          int
}

// DeleteResult reports whether the target of a delete existed.
type DeleteResult struct {
	Existed bool
}

// EdgeKind enumerates the four edge kinds carried on the graph.
type EdgeKind string

const (
	EdgeHasChild EdgeKind = "has_child"
	EdgeMentions EdgeKind = "mentions"
	EdgeMemberOf EdgeKind = "member_of"
	EdgeRelation EdgeKind = "relation"
)

// HierarchyEdge is a has_child edge: parent -> child, with fractional order.
type HierarchyEdge struct {
	ParentID string
	ChildID  string
	Order    float64
}

// MentionEdge is a mentions edge: source -> target, rooted at RootID.
type MentionEdge struct {
	SourceID string
	TargetID string
	RootID   string
}

// MembershipEdge is a member_of edge: member -> collection.
type MembershipEdge struct {
	MemberID     string
	CollectionID string
	CreatedAt    time.Time
}

// RelationEdge is a schema-defined relation edge between two typed nodes.
type RelationEdge struct {
	TableName string
	SourceID  string
	TargetID  string
	Data      map[string]any
	CreatedAt time.Time
	Version   int
}

// ChangeOperation enumerates the kind of mutation a StoreChange reports.
type ChangeOperation string

const (
	ChangeCreated ChangeOperation = "created"
	ChangeUpdated ChangeOperation = "updated"
	ChangeDeleted ChangeOperation = "deleted"
)

// StoreChange is delivered to the notifier exactly once per committed
// mutation, never for rolled-back ones.
type StoreChange struct {
	Operation      ChangeOperation
	NodeID         string
	Node           *Node
	SourceClientID string
}

// Notifier is invoked by the store after every successful commit.
type Notifier func(StoreChange)
