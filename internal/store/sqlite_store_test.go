package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := &Node{ID: "n1", NodeType: NodeTypeText, Content: "hello"}
	require.NoError(t, s.CreateNode(ctx, n, ""))
	assert.Equal(t, 1, n.Version)

	got, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, LifecycleActive, got.LifecycleStatus)
}

func TestGetNodeMissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetNode(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateNodeOCC(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n := &Node{ID: "n1", NodeType: NodeTypeText, Content: "v1"}
	require.NoError(t, s.CreateNode(ctx, n, ""))

	newContent := "v2"
	updated, err := s.UpdateNode(ctx, "n1", 1, NodeUpdate{Content: &newContent}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "v2", updated.Content)

	_, err = s.UpdateNode(ctx, "n1", 1, NodeUpdate{Content: &newContent}, "")
	var conflict *VersionConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateNodeMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	c := "x"
	_, err := s.UpdateNode(context.Background(), "missing", 1, NodeUpdate{Content: &c}, "")
	var notFound *NodeNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDeleteNodeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res, err := s.DeleteNode(ctx, "missing", 1, "")
	require.NoError(t, err)
	assert.False(t, res.Existed)

	n := &Node{ID: "n1", NodeType: NodeTypeText}
	require.NoError(t, s.CreateNode(ctx, n, ""))
	res, err = s.DeleteNode(ctx, "n1", 1, "")
	require.NoError(t, err)
	assert.True(t, res.Existed)

	got, _ := s.GetNode(ctx, "n1")
	assert.Nil(t, got)
}

func TestHierarchyEdgesAndSubtree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root := &Node{ID: "root", NodeType: NodeTypeText}
	child := &Node{ID: "child", NodeType: NodeTypeText}
	grandchild := &Node{ID: "grandchild", NodeType: NodeTypeText}
	require.NoError(t, s.CreateNode(ctx, root, ""))
	require.NoError(t, s.CreateNode(ctx, child, ""))
	require.NoError(t, s.CreateNode(ctx, grandchild, ""))

	require.NoError(t, s.CreateHierarchyEdge(ctx, HierarchyEdge{ParentID: "root", ChildID: "child", Order: 1}))
	require.NoError(t, s.CreateHierarchyEdge(ctx, HierarchyEdge{ParentID: "child", ChildID: "grandchild", Order: 1}))

	children, err := s.GetChildren(ctx, "root")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "child", children[0].ChildID)

	ids, err := s.GetSubtreeIDs(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "child", "grandchild"}, ids)

	parent, err := s.GetParentEdge(ctx, "grandchild")
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "child", parent.ParentID)
}

func TestReparentNode(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateNode(ctx, &Node{ID: id, NodeType: NodeTypeText}, ""))
	}
	require.NoError(t, s.CreateHierarchyEdge(ctx, HierarchyEdge{ParentID: "a", ChildID: "c", Order: 1}))
	require.NoError(t, s.ReparentNode(ctx, "c", "b", 2))

	parent, err := s.GetParentEdge(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "b", parent.ParentID)
	assert.Equal(t, 2.0, parent.Order)
}

func TestMentionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"root", "src", "tgt"} {
		require.NoError(t, s.CreateNode(ctx, &Node{ID: id, NodeType: NodeTypeText}, ""))
	}
	require.NoError(t, s.ReplaceOutgoingMentions(ctx, "src", "root", []string{"tgt"}))

	out, err := s.GetOutgoingMentions(ctx, "src")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "tgt", out[0].TargetID)

	in, err := s.GetIncomingMentions(ctx, "tgt")
	require.NoError(t, err)
	require.Len(t, in, 1)

	containers, err := s.GetMentioningContainerIDs(ctx, "tgt")
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, containers)

	require.NoError(t, s.ReplaceOutgoingMentions(ctx, "src", "root", nil))
	out, err = s.GetOutgoingMentions(ctx, "src")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMembershipRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"member", "coll1", "coll2"} {
		require.NoError(t, s.CreateNode(ctx, &Node{ID: id, NodeType: NodeTypeCollection}, ""))
	}
	require.NoError(t, s.AddMembership(ctx, MembershipEdge{MemberID: "member", CollectionID: "coll1"}))
	require.NoError(t, s.AddMembership(ctx, MembershipEdge{MemberID: "member", CollectionID: "coll2"}))

	collections, err := s.GetCollectionsFor(ctx, "member")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"coll1", "coll2"}, collections)

	count, err := s.CountMembers(ctx, "coll1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.RemoveMembership(ctx, "member", "coll1"))
	members, err := s.GetMembers(ctx, "coll1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestEmbeddingStaleLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateNode(ctx, &Node{ID: "root", NodeType: NodeTypeText}, ""))
	require.NoError(t, s.MarkRootStale(ctx, "root"))

	has, err := s.HasEmbedding(ctx, "root")
	require.NoError(t, err)
	assert.False(t, has)

	claimed, err := s.ClaimStaleRoots(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, claimed)

	again, err := s.ClaimStaleRoots(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again, "already-claimed rows should not be reclaimed")

	require.NoError(t, s.WriteEmbedding(ctx, "root", make([]float32, 768)))
	has, err = s.HasEmbedding(ctx, "root")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestListOrphanedEmbeddingsReapsVectorsOfDeletedNodes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateNode(ctx, &Node{ID: "root", NodeType: NodeTypeText}, ""))
	require.NoError(t, s.WriteEmbedding(ctx, "root", make([]float32, 768)))

	orphans, err := s.ListOrphanedEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans, "a live node's embedding is not an orphan")

	_, err = s.DeleteNode(ctx, "root", 1, "")
	require.NoError(t, err)

	orphans, err = s.ListOrphanedEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"root"}, orphans)

	require.NoError(t, s.DeleteEmbedding(ctx, "root"))
	orphans, err = s.ListOrphanedEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestNotifierFiresOnCommit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var changes []StoreChange
	s.SetNotifier(func(c StoreChange) { changes = append(changes, c) })

	require.NoError(t, s.CreateNode(ctx, &Node{ID: "n1", NodeType: NodeTypeText}, ""))
	require.Len(t, changes, 1)
	assert.Equal(t, ChangeCreated, changes[0].Operation)
}
