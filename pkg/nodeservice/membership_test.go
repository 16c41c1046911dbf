package nodeservice

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMembershipRejectsNonCollectionTarget(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	member, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "m"})
	require.NoError(t, err)
	notACollection, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "x"})
	require.NoError(t, err)

	err = s.AddMembership(ctx, member.ID, notACollection.ID)
	var invalidUpdate *store.InvalidUpdateError
	assert.ErrorAs(t, err, &invalidUpdate)
}

func TestAddMembershipIsIdempotentAndQueryable(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	collection, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeCollection, Content: "work"})
	require.NoError(t, err)
	member, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "m"})
	require.NoError(t, err)

	require.NoError(t, s.AddMembership(ctx, member.ID, collection.ID))
	require.NoError(t, s.AddMembership(ctx, member.ID, collection.ID))

	count, err := s.CountMembers(ctx, collection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	collections, err := s.GetCollectionsFor(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{collection.ID}, collections)
}

func TestRemoveMembershipDeletesEdge(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	collection, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeCollection, Content: "work"})
	require.NoError(t, err)
	member, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "m"})
	require.NoError(t, err)
	require.NoError(t, s.AddMembership(ctx, member.ID, collection.ID))

	require.NoError(t, s.RemoveMembership(ctx, member.ID, collection.ID))

	count, err := s.CountMembers(ctx, collection.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestListNodesByTypeReturnsOnlyMatchingType(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	_, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeCollection, Content: "hr"})
	require.NoError(t, err)
	_, err = s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "not a collection"})
	require.NoError(t, err)

	collections, err := s.ListNodesByType(ctx, store.NodeTypeCollection)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, "hr", collections[0].Content)
}
