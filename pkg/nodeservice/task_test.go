package nodeservice

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTaskNodeJoinsHubAndSpokeStatus(t *testing.T) {
	ctx := context.Background()
	s, schemas, _ := newTestService(t)
	installTaskSchema(t, ctx, s, schemas)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeTask, Content: "ship it"})
	require.NoError(t, err)

	task, err := s.GetTaskNode(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "open", task.Status)
	assert.Equal(t, "ship it", task.Content)

	updated, err := s.UpdateTaskStatus(ctx, n.ID, n.Version, "done")
	require.NoError(t, err)

	task, err = s.GetTaskNode(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "done", task.Status)
	assert.Equal(t, updated.Version, task.Version)
}

func TestGetTaskNodeReturnsNilForMissingID(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	task, err := s.GetTaskNode(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestGetTaskNodeRejectsNonTaskType(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "not a task"})
	require.NoError(t, err)

	_, err = s.GetTaskNode(ctx, n.ID)
	var invalidUpdate *store.InvalidUpdateError
	assert.ErrorAs(t, err, &invalidUpdate)
}
