package collection

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/nodeservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddToCollectionValidatesTargetAndMember(t *testing.T) {
	ctx := context.Background()
	s, nodes := newTestService(t)

	collection, err := nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{NodeType: store.NodeTypeCollection, Content: "work"})
	require.NoError(t, err)
	note, err := nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{NodeType: store.NodeTypeText, Content: "note"})
	require.NoError(t, err)

	require.NoError(t, s.AddToCollection(ctx, note.ID, collection.ID))

	count, err := nodes.CountMembers(ctx, collection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = s.AddToCollection(ctx, note.ID, note.ID)
	var cyclic *store.CircularReferenceError
	assert.ErrorAs(t, err, &cyclic)

	err = s.AddToCollection(ctx, collection.ID, note.ID)
	var invalidUpdate *store.InvalidUpdateError
	assert.ErrorAs(t, err, &invalidUpdate)
}

func TestAddToCollectionRejectsAncestorCycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)

	parentID, err := s.ResolvePath(ctx, "parent")
	require.NoError(t, err)
	childID, err := s.ResolvePath(ctx, "parent:child")
	require.NoError(t, err)

	err = s.AddToCollection(ctx, parentID, childID)
	var cyclic *store.CircularReferenceError
	assert.ErrorAs(t, err, &cyclic)
}

func TestRemoveFromCollectionDeletesEdge(t *testing.T) {
	ctx := context.Background()
	s, nodes := newTestService(t)

	collection, err := nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{NodeType: store.NodeTypeCollection, Content: "work"})
	require.NoError(t, err)
	note, err := nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{NodeType: store.NodeTypeText, Content: "note"})
	require.NoError(t, err)
	require.NoError(t, s.AddToCollection(ctx, note.ID, collection.ID))

	require.NoError(t, s.RemoveFromCollection(ctx, note.ID, collection.ID))

	count, err := nodes.CountMembers(ctx, collection.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetAllCollectionsWithCountsProjectsEveryCollection(t *testing.T) {
	ctx := context.Background()
	s, nodes := newTestService(t)

	a, err := nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{NodeType: store.NodeTypeCollection, Content: "a"})
	require.NoError(t, err)
	b, err := nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{NodeType: store.NodeTypeCollection, Content: "b"})
	require.NoError(t, err)
	member, err := nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{NodeType: store.NodeTypeText, Content: "m"})
	require.NoError(t, err)
	require.NoError(t, s.AddToCollection(ctx, member.ID, a.ID))

	all, err := s.GetAllCollectionsWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	counts := map[string]int{}
	for _, c := range all {
		counts[c.Node.ID] = c.Count
	}
	assert.Equal(t, 1, counts[a.ID])
	assert.Equal(t, 0, counts[b.ID])
}
