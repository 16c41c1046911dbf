package handlers

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/behavior"
	"github.com/nodespace/core/pkg/collection"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/migration"
	"github.com/nodespace/core/pkg/nodeservice"
	"github.com/nodespace/core/pkg/schemaservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	nodes := nodeservice.New(st, behavior.NewRegistry(), migration.NewRegistry(), eventbus.New(), nil)
	schemas := schemaservice.New(nodes)
	nodes.SetSchemaLookup(schemas)
	coll := collection.New(nodes)

	return New(nodes, schemas, coll, nil)
}

func TestCreateNodeThenGetNodeRoundTrips(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	created, herr := d.Dispatch(ctx, "create_node", Params{
		"node_type": "text",
		"content":   "hello world",
	})
	require.Nil(t, herr)
	require.Equal(t, true, created["success"])
	node := created["node"].(map[string]any)
	id := node["id"].(string)
	assert.Equal(t, "hello world", node["content"])

	fetched, herr := d.Dispatch(ctx, "get_node", Params{"id": id})
	require.Nil(t, herr)
	assert.Equal(t, "hello world", fetched["node"].(map[string]any)["content"])
}

func TestGetNodeMissingReturnsNotFoundEnvelope(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	_, herr := d.Dispatch(ctx, "get_node", Params{"id": "does-not-exist"})
	require.NotNil(t, herr)
	assert.Equal(t, "not_found", herr.Code)
}

func TestCreateNodeMissingNodeTypeReturnsMissingField(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	_, herr := d.Dispatch(ctx, "create_node", Params{"content": "no type"})
	require.NotNil(t, herr)
	assert.Equal(t, "missing_field", herr.Code)
}

func TestUnknownOperationReturnsEnvelope(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	_, herr := d.Dispatch(ctx, "not_a_real_operation", Params{})
	require.NotNil(t, herr)
	assert.Equal(t, "unknown_operation", herr.Code)
}

func TestCreateNodesFromMarkdownThenExportRoundTrips(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	created, herr := d.Dispatch(ctx, "create_nodes_from_markdown", Params{
		"markdown": "# A\n## B\ntext under B",
	})
	require.Nil(t, herr)
	rootID := created["root_id"].(string)
	assert.Equal(t, 3, created["nodes_created"])

	exported, herr := d.Dispatch(ctx, "get_markdown_from_node_id", Params{
		"root_id":      rootID,
		"include_self": true,
	})
	require.Nil(t, herr)
	assert.Contains(t, exported["markdown"], "# A")
	assert.Contains(t, exported["markdown"], "## B")
}

func TestUpdateRootFromMarkdownReplacesSubtree(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	created, herr := d.Dispatch(ctx, "create_nodes_from_markdown", Params{
		"markdown": "# A\n## B",
	})
	require.Nil(t, herr)
	rootID := created["root_id"].(string)

	updated, herr := d.Dispatch(ctx, "update_root_from_markdown", Params{
		"root_id":  rootID,
		"markdown": "## C",
	})
	require.Nil(t, herr)
	assert.Equal(t, rootID, updated["root_id"])
	assert.Equal(t, 1, updated["nodes_created"])

	children, herr := d.Dispatch(ctx, "get_children", Params{"parent_id": rootID})
	require.Nil(t, herr)
	ids := children["child_ids"].([]string)
	require.Len(t, ids, 1)
}

func TestMoveNodeWithOCCVersionConflictReturnsEnvelope(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	a, herr := d.Dispatch(ctx, "create_node_with_parent", Params{"node_type": "text", "content": "a"})
	require.Nil(t, herr)
	b, herr := d.Dispatch(ctx, "create_node_with_parent", Params{"node_type": "text", "content": "b"})
	require.Nil(t, herr)
	aID := a["node"].(map[string]any)["id"].(string)
	bID := b["node"].(map[string]any)["id"].(string)

	_, herr = d.Dispatch(ctx, "move_node", Params{
		"id":               aID,
		"new_parent_id":    bID,
		"expected_version": 999,
	})
	require.NotNil(t, herr)
	assert.Equal(t, "version_conflict", herr.Code)
}

func TestAddToCollectionThenGetAllCollectionsWithCounts(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	collRes, herr := d.Dispatch(ctx, "create_node", Params{"node_type": store.NodeTypeCollection, "content": "Projects"})
	require.Nil(t, herr)
	collID := collRes["node"].(map[string]any)["id"].(string)

	memberRes, herr := d.Dispatch(ctx, "create_node", Params{"node_type": "text", "content": "member"})
	require.Nil(t, herr)
	memberID := memberRes["node"].(map[string]any)["id"].(string)

	_, herr = d.Dispatch(ctx, "add_to_collection", Params{
		"member_id":     memberID,
		"collection_id": collID,
	})
	require.Nil(t, herr)

	all, herr := d.Dispatch(ctx, "get_all_collections_with_counts", Params{})
	require.Nil(t, herr)
	collections := all["collections"].([]map[string]any)
	require.Len(t, collections, 1)
	assert.Equal(t, 1, collections[0]["count"])
}
