package nodeservice

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateNodeWithOCCBumpsVersionAndDetectsConflict(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "v1"})
	require.NoError(t, err)

	newContent := "v2"
	updated, err := s.UpdateNodeWithOCC(ctx, n.ID, n.Version, store.NodeUpdate{Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)
	assert.Equal(t, n.Version+1, updated.Version)

	_, err = s.UpdateNodeWithOCC(ctx, n.ID, n.Version, store.NodeUpdate{Content: &newContent})
	var conflict *store.VersionConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUpdateNodeRejectsEmptyUpdate(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "v1"})
	require.NoError(t, err)

	_, err = s.UpdateNode(ctx, n.ID, store.NodeUpdate{})
	var invalidUpdate *store.InvalidUpdateError
	assert.ErrorAs(t, err, &invalidUpdate)
}

func TestUpdateNodeContentChangeTriggersMentionSyncAndEmbeddingQueue(t *testing.T) {
	ctx := context.Background()
	s, _, waker := newTestService(t)

	target, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "target"})
	require.NoError(t, err)
	source, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeText, Content: "no mentions yet"})
	require.NoError(t, err)

	newContent := "now mentions nodespace://" + target.ID
	_, err = s.UpdateNode(ctx, source.ID, store.NodeUpdate{Content: &newContent})
	require.NoError(t, err)

	mentions, err := s.GetOutgoingMentions(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, target.ID, mentions[0].TargetID)
	assert.Greater(t, waker.woken, 0)
}

func TestUpdateNodePropertiesFillsSchemaDefaultsAndPreservesPriorFields(t *testing.T) {
	ctx := context.Background()
	s, schemas, _ := newTestService(t)
	installTaskSchema(t, ctx, s, schemas)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeTask, Content: "task"})
	require.NoError(t, err)

	updated, err := s.UpdateNode(ctx, n.ID, store.NodeUpdate{Properties: map[string]any{"status": "done"}})
	require.NoError(t, err)

	props, err := updated.DecodeProperties()
	require.NoError(t, err)
	assert.Equal(t, "done", props["status"])
	assert.Equal(t, float64(1), props[store.SchemaVersionKey])
}

func TestUpdateNodePropertiesDeletesKeysSetToNil(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{
		NodeType: store.NodeTypeText, Content: "x", Properties: map[string]any{"note": "keep me"},
	})
	require.NoError(t, err)

	updated, err := s.UpdateNode(ctx, n.ID, store.NodeUpdate{Properties: map[string]any{"note": nil, "extra": "added"}})
	require.NoError(t, err)

	props, err := updated.DecodeProperties()
	require.NoError(t, err)
	_, stillPresent := props["note"]
	assert.False(t, stillPresent)
	assert.Equal(t, "added", props["extra"])
}

func TestUpdateTaskStatusIsAtomicWithHubVersion(t *testing.T) {
	ctx := context.Background()
	s, schemas, _ := newTestService(t)
	installTaskSchema(t, ctx, s, schemas)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeTask, Content: "ship it"})
	require.NoError(t, err)

	updated, err := s.UpdateTaskStatus(ctx, n.ID, n.Version, "done")
	require.NoError(t, err)
	assert.Equal(t, n.Version+1, updated.Version)

	row, err := s.store.GetSpokeRow(ctx, taskSpokeTable, n.ID, []string{"f_status"})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "done", row["f_status"])
}

func TestUpdateTaskStatusRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	s, schemas, _ := newTestService(t)
	installTaskSchema(t, ctx, s, schemas)

	n, err := s.CreateNodeWithParent(ctx, CreateParams{NodeType: store.NodeTypeTask, Content: "ship it"})
	require.NoError(t, err)

	_, err = s.UpdateTaskStatus(ctx, n.ID, n.Version, "in-progress")
	var validationErr *store.ValidationFailedError
	assert.ErrorAs(t, err, &validationErr)
}

func TestUpdateSchemaNodeBumpsSchemaVersionAndSyncsDDL(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestService(t)

	n := &store.Node{
		ID:       "project",
		NodeType: store.NodeTypeSchema,
		Content:  `{"TypeName":"project","Version":1,"Fields":[{"Name":"status","Kind":"enum","CoreValues":["open","closed"]}]}`,
	}
	created, err := s.CreateNode(ctx, n)
	require.NoError(t, err)

	newContent := `{"TypeName":"project","Version":1,"Fields":[{"Name":"status","Kind":"enum","CoreValues":["open","closed"]},{"Name":"owner","Kind":"string"}]}`
	updated, err := s.UpdateNodeWithOCC(ctx, created.ID, created.Version, store.NodeUpdate{Content: &newContent})
	require.NoError(t, err)
	assert.Contains(t, updated.Content, `"Version":2`)

	require.NoError(t, s.store.CreateNode(ctx, &store.Node{ID: "test-p1", NodeType: "project"}, ""))
	require.NoError(t, s.store.UpsertSpokeRow(ctx, "spoke_project", "test-p1", []string{"f_owner"}, []any{"alice"}))
	row, err := s.store.GetSpokeRow(ctx, "spoke_project", "test-p1", []string{"f_owner"})
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "alice", row["f_owner"])
}
