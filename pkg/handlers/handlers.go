// Package handlers implements the RPC-style handler surface (§6.1): a flat
// set of named operations, each taking a JSON parameter object and
// returning either a success payload or a `{code, message}` error envelope.
// This is the one layer in the repository that speaks the wire's loosely
// typed map[string]any rather than Go structs — every handler's first job is
// decoding Params into a typed service call, and its last job is projecting
// the result back through nodeResult/nodeResults.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/collection"
	"github.com/nodespace/core/pkg/markdown"
	"github.com/nodespace/core/pkg/nodeservice"
	"github.com/nodespace/core/pkg/schemaservice"
	"github.com/nodespace/core/pkg/titleindex"
)

// Dispatcher wires the service layer to the named-operation surface.
// The zero value is not usable; build one with New.
type Dispatcher struct {
	nodes      *nodeservice.Service
	schemas    *schemaservice.Service
	collection *collection.Service
	titles     *titleindex.Index
}

// New builds a Dispatcher over the given services. titles may be nil — a
// Dispatcher built without one simply fails suggest_titles/scan_for_mentions
// with a "not_found"-flavored error rather than panicking.
func New(nodes *nodeservice.Service, schemas *schemaservice.Service, coll *collection.Service, titles *titleindex.Index) *Dispatcher {
	return &Dispatcher{nodes: nodes, schemas: schemas, collection: coll, titles: titles}
}

// Dispatch routes name to its handler function. An unknown name reports
// "unknown_operation" rather than panicking, since name ultimately comes
// from outside the process.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params Params) (map[string]any, *Error) {
	fn, ok := operations[name]
	if !ok {
		return nil, newError("unknown_operation", "no handler registered for "+name)
	}
	return fn(d, ctx, params)
}

type operation func(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error)

var operations = map[string]operation{
	"create_node":                    handleCreateNode,
	"create_node_with_parent":        handleCreateNodeWithParent,
	"batch_create_nodes":             handleBatchCreateNodes,
	"bulk_create_hierarchy":          handleBulkCreateHierarchy,
	"get_node":                       handleGetNode,
	"get_nodes_by_ids":               handleGetNodesByIds,
	"update_node":                    handleUpdateNode,
	"update_node_with_occ":           handleUpdateNodeWithOCC,
	"bulk_update":                    handleBulkUpdate,
	"delete_node_with_occ":           handleDeleteNodeWithOCC,
	"move_node":                      handleMoveNode,
	"get_children":                   handleGetChildren,
	"get_descendants":                handleGetDescendants,
	"get_subtree_data":               handleGetSubtreeData,
	"get_root_id":                    handleGetRootID,
	"create_mention":                 handleCreateMention,
	"get_mentioning_containers":      handleGetMentioningContainers,
	"create_relationship":            handleCreateRelationship,
	"get_related_nodes":              handleGetRelatedNodes,
	"add_to_collection":              handleAddToCollection,
	"remove_from_collection":         handleRemoveFromCollection,
	"get_all_collections_with_counts": handleGetAllCollectionsWithCounts,
	"resolve_path":                   handleResolvePath,
	"get_task_node":                  handleGetTaskNode,
	"update_task_node":               handleUpdateTaskNode,
	"get_schema":                     handleGetSchema,
	"get_schema_node":                handleGetSchemaNode,
	"get_all_schemas":                handleGetAllSchemas,
	"create_schema_node_atomic":      handleCreateSchemaNodeAtomic,
	"extend_enum_field":              handleExtendEnumField,
	"sync_schema_to_database":        handleSyncSchemaToDatabase,
	"validate_node_against_schema":   handleValidateNodeAgainstSchema,
	"has_embeddings":                 handleHasEmbeddings,
	"create_nodes_from_markdown":     handleCreateNodesFromMarkdown,
	"update_root_from_markdown":      handleUpdateRootFromMarkdown,
	"get_markdown_from_node_id":      handleGetMarkdownFromNodeID,
	"suggest_titles":                 handleSuggestTitles,
	"scan_for_mentions":              handleScanForMentions,
}

func handleCreateNode(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	nodeType, err := p.str("node_type")
	if err != nil {
		return nil, err
	}
	n := &store.Node{
		ID:       p.optStr("id"),
		NodeType: nodeType,
		Content:  p.optStr("content"),
	}
	if props := p.optMap("properties"); props != nil {
		if encoded, merr := json.Marshal(props); merr == nil {
			n.Properties = encoded
		}
	}
	created, cerr := d.nodes.CreateNode(ctx, n)
	if cerr != nil {
		return nil, errorToEnvelope(cerr)
	}
	return map[string]any{"success": true, "node": nodeResult(created)}, nil
}

func handleCreateNodeWithParent(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	nodeType, err := p.str("node_type")
	if err != nil {
		return nil, err
	}
	created, cerr := d.nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{
		ID:                p.optStr("id"),
		NodeType:          nodeType,
		Content:           p.optStr("content"),
		Properties:        p.optMap("properties"),
		ParentID:          p.optStr("parent_id"),
		InsertAfterNodeID: p.optStrPtr("insert_after_node_id"),
	})
	if cerr != nil {
		return nil, errorToEnvelope(cerr)
	}
	return map[string]any{"success": true, "node": nodeResult(created)}, nil
}

func handleBatchCreateNodes(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	raw, ok := p["nodes"].([]any)
	if !ok {
		return nil, missingParam("nodes")
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		res, herr := handleCreateNodeWithParent(d, ctx, Params(m))
		if herr != nil {
			return nil, herr
		}
		out = append(out, res["node"].(map[string]any))
	}
	return map[string]any{"success": true, "nodes": out}, nil
}

func handleBulkCreateHierarchy(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	raw, ok := p["rows"].([]any)
	if !ok {
		return nil, missingParam("rows")
	}
	rows := make([]nodeservice.BulkRow, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rp := Params(m)
		rows = append(rows, nodeservice.BulkRow{
			ID:         rp.optStr("id"),
			NodeType:   rp.optStr("node_type"),
			Content:    rp.optStr("content"),
			ParentID:   rp.optStr("parent_id"),
			Order:      float64(rp.optInt("order", 0)),
			Properties: rp.optMap("properties"),
		})
	}
	if err := d.nodes.BulkCreateHierarchy(ctx, rows); err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "count": len(rows)}, nil
}

func handleGetNode(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	n, err := d.nodes.GetNode(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	if n == nil {
		return nil, newError("not_found", "no node with id "+id)
	}
	return map[string]any{"success": true, "node": nodeResult(n)}, nil
}

func handleGetNodesByIds(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	ids := p.optStrSlice("ids")
	if len(ids) == 0 {
		return nil, missingParam("ids")
	}
	nodes := make([]*store.Node, 0, len(ids))
	for _, id := range ids {
		n, err := d.nodes.GetNode(ctx, id)
		if err != nil {
			return nil, errorToEnvelope(err)
		}
		nodes = append(nodes, n)
	}
	return map[string]any{"success": true, "nodes": nodeResults(nodes)}, nil
}

func handleUpdateNode(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	updated, err := d.nodes.UpdateNode(ctx, id, nodeUpdateFromParams(p))
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "node": nodeResult(updated)}, nil
}

func handleUpdateNodeWithOCC(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	version, verr := p.intRequired("expected_version")
	if verr != nil {
		return nil, verr
	}
	updated, err := d.nodes.UpdateNodeWithOCC(ctx, id, version, nodeUpdateFromParams(p))
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "node": nodeResult(updated)}, nil
}

func nodeUpdateFromParams(p Params) store.NodeUpdate {
	var u store.NodeUpdate
	if v, ok := p["node_type"]; ok {
		if s, ok := v.(string); ok {
			u.NodeType = &s
		}
	}
	if v, ok := p["content"]; ok {
		if s, ok := v.(string); ok {
			u.Content = &s
		}
	}
	if props := p.optMap("properties"); props != nil {
		u.Properties = props
	}
	if v, ok := p["title"]; ok {
		if s, ok := v.(string); ok {
			u.Title = store.NullableTitle{Set: true, Value: &s}
		} else if v == nil {
			u.Title = store.NullableTitle{Set: true, Value: nil}
		}
	}
	return u
}

func handleBulkUpdate(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	raw, ok := p["updates"].([]any)
	if !ok {
		return nil, missingParam("updates")
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		res, herr := handleUpdateNode(d, ctx, Params(m))
		if herr != nil {
			return nil, herr
		}
		out = append(out, res["node"].(map[string]any))
	}
	return map[string]any{"success": true, "nodes": out}, nil
}

func handleDeleteNodeWithOCC(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	version, verr := p.intRequired("expected_version")
	if verr != nil {
		return nil, verr
	}
	res, err := d.nodes.DeleteNodeWithOCC(ctx, id, version)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "existed": res.Existed}, nil
}

func handleMoveNode(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	newParentID, perr := p.str("new_parent_id")
	if perr != nil {
		return nil, perr
	}
	insertAfter := p.optStrPtr("insert_after_node_id")
	if _, ok := p["expected_version"]; ok {
		expected, verr := p.intRequired("expected_version")
		if verr != nil {
			return nil, verr
		}
		updated, err := d.nodes.MoveNodeWithOCC(ctx, id, newParentID, insertAfter, expected)
		if err != nil {
			return nil, errorToEnvelope(err)
		}
		return map[string]any{"success": true, "node": nodeResult(updated)}, nil
	}
	if err := d.nodes.MoveNode(ctx, id, newParentID, insertAfter); err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true}, nil
}

func handleGetChildren(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("parent_id")
	if perr != nil {
		return nil, perr
	}
	edges, err := d.nodes.GetChildren(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "child_ids": idsFromEdges(edges)}, nil
}

func handleGetDescendants(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("root_id")
	if perr != nil {
		return nil, perr
	}
	ids, err := d.nodes.GetDescendants(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "descendant_ids": ids}, nil
}

func handleGetSubtreeData(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("root_id")
	if perr != nil {
		return nil, perr
	}
	data, err := d.nodes.GetSubtreeData(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	nodes := make(map[string]any, len(data.Nodes))
	for k, v := range data.Nodes {
		nodes[k] = nodeResult(v)
	}
	return map[string]any{
		"success":  true,
		"root":     nodeResult(data.Root),
		"nodes":    nodes,
		"children": data.Children,
	}, nil
}

func handleGetRootID(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	rootID, err := d.nodes.GetRootID(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "root_id": rootID}, nil
}

func handleCreateMention(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	source, perr := p.str("source_id")
	if perr != nil {
		return nil, perr
	}
	target, perr := p.str("target_id")
	if perr != nil {
		return nil, perr
	}
	if err := d.nodes.CreateMention(ctx, source, target); err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true}, nil
}

func handleGetMentioningContainers(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("target_id")
	if perr != nil {
		return nil, perr
	}
	ids, err := d.nodes.GetMentioningContainers(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "container_ids": ids}, nil
}

func handleCreateRelationship(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	source, perr := p.str("source_id")
	if perr != nil {
		return nil, perr
	}
	name, perr := p.str("name")
	if perr != nil {
		return nil, perr
	}
	target, perr := p.str("target_id")
	if perr != nil {
		return nil, perr
	}
	if err := d.nodes.CreateRelationship(ctx, source, name, target, p.optMap("edge_data")); err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true}, nil
}

func handleGetRelatedNodes(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("node_id")
	if perr != nil {
		return nil, perr
	}
	name, perr := p.str("name")
	if perr != nil {
		return nil, perr
	}
	nodes, err := d.nodes.GetRelatedNodes(ctx, id, name, p.optBool("outgoing", true))
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "nodes": nodeResults(nodes)}, nil
}

func handleAddToCollection(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	member, perr := p.str("member_id")
	if perr != nil {
		return nil, perr
	}
	coll, perr := p.str("collection_id")
	if perr != nil {
		return nil, perr
	}
	if err := d.collection.AddToCollection(ctx, member, coll); err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true}, nil
}

func handleRemoveFromCollection(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	member, perr := p.str("member_id")
	if perr != nil {
		return nil, perr
	}
	coll, perr := p.str("collection_id")
	if perr != nil {
		return nil, perr
	}
	if err := d.collection.RemoveFromCollection(ctx, member, coll); err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true}, nil
}

func handleGetAllCollectionsWithCounts(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	collections, err := d.collection.GetAllCollectionsWithCounts(ctx)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	out := make([]map[string]any, len(collections))
	for i, c := range collections {
		out[i] = map[string]any{"node": nodeResult(c.Node), "count": c.Count}
	}
	return map[string]any{"success": true, "collections": out}, nil
}

func handleResolvePath(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	path, perr := p.str("path")
	if perr != nil {
		return nil, perr
	}
	id, err := d.collection.ResolvePath(ctx, path)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "id": id}, nil
}

func handleGetTaskNode(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	task, err := d.nodes.GetTaskNode(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	if task == nil {
		return nil, newError("not_found", "no task node with id "+id)
	}
	result := nodeResult(task.Node)
	result["status"] = task.Status
	return map[string]any{"success": true, "task": result}, nil
}

func handleUpdateTaskNode(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("id")
	if perr != nil {
		return nil, perr
	}
	version, verr := p.intRequired("expected_version")
	if verr != nil {
		return nil, verr
	}
	status, serr := p.str("status")
	if serr != nil {
		return nil, serr
	}
	updated, err := d.nodes.UpdateTaskStatus(ctx, id, version, status)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "node": nodeResult(updated)}, nil
}

func handleGetSchema(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	typeName, perr := p.str("type_name")
	if perr != nil {
		return nil, perr
	}
	def, err := d.schemas.GetSchema(ctx, typeName)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "schema": def}, nil
}

func handleGetSchemaNode(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	typeName, perr := p.str("type_name")
	if perr != nil {
		return nil, perr
	}
	n, err := d.schemas.GetSchemaNode(ctx, typeName)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	if n == nil {
		return nil, newError("not_found", "no schema node for type "+typeName)
	}
	return map[string]any{"success": true, "node": nodeResult(n)}, nil
}

func handleGetAllSchemas(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	all, err := d.schemas.GetAllSchemas(ctx)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "schemas": all}, nil
}

func handleCreateSchemaNodeAtomic(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	raw, ok := p["definition"].(map[string]any)
	if !ok {
		return nil, missingParam("definition")
	}
	n, err := d.schemas.CreateSchema(ctx, definition(raw))
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "node": nodeResult(n)}, nil
}

func handleExtendEnumField(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	typeName, perr := p.str("type_name")
	if perr != nil {
		return nil, perr
	}
	fieldName, perr := p.str("field_name")
	if perr != nil {
		return nil, perr
	}
	value, perr := p.str("value")
	if perr != nil {
		return nil, perr
	}
	n, err := d.schemas.ExtendEnumField(ctx, typeName, fieldName, value)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "node": nodeResult(n)}, nil
}

func handleSyncSchemaToDatabase(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	typeName, perr := p.str("type_name")
	if perr != nil {
		return nil, perr
	}
	n, err := d.schemas.SyncSchemaToDatabase(ctx, typeName)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "node": nodeResult(n)}, nil
}

func handleValidateNodeAgainstSchema(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	typeName, perr := p.str("type_name")
	if perr != nil {
		return nil, perr
	}
	props := p.optMap("properties")
	if err := d.schemas.ValidateNodeAgainstSchema(ctx, typeName, props); err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "valid": true}, nil
}

func handleHasEmbeddings(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	id, perr := p.str("root_id")
	if perr != nil {
		return nil, perr
	}
	has, err := d.nodes.Store().HasEmbedding(ctx, id)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "has_embeddings": has}, nil
}

func handleCreateNodesFromMarkdown(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	content, perr := p.str("markdown")
	if perr != nil {
		return nil, perr
	}
	result, err := markdown.Import(ctx, d.nodes, content, p.optStr("title"))
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{
		"success":       true,
		"root_id":       result.RootID,
		"nodes_created": result.NodesCreated,
	}, nil
}

func handleUpdateRootFromMarkdown(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	rootID, perr := p.str("root_id")
	if perr != nil {
		return nil, perr
	}
	content, perr := p.str("markdown")
	if perr != nil {
		return nil, perr
	}
	result, err := markdown.UpdateRoot(ctx, d.nodes, rootID, content)
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{
		"success":       true,
		"root_id":       result.RootID,
		"nodes_deleted": result.NodesDeleted,
		"nodes_created": result.NodesCreated,
	}, nil
}

func handleGetMarkdownFromNodeID(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	rootID, perr := p.str("root_id")
	if perr != nil {
		return nil, perr
	}
	result, err := markdown.Export(ctx, d.nodes.Store(), rootID,
		p.optBool("include_self", true),
		p.optBool("include_ids", true),
		p.optInt("max_depth", 0))
	if err != nil {
		return nil, errorToEnvelope(err)
	}
	return map[string]any{"success": true, "markdown": result.Markdown}, nil
}

func handleSuggestTitles(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	if d.titles == nil {
		return nil, newError("not_found", "title index is not available")
	}
	prefix, perr := p.str("prefix")
	if perr != nil {
		return nil, perr
	}
	suggestions := d.titles.Suggest(prefix, p.optInt("limit", 10))
	return map[string]any{"success": true, "suggestions": suggestions}, nil
}

func handleScanForMentions(d *Dispatcher, ctx context.Context, p Params) (map[string]any, *Error) {
	if d.titles == nil {
		return nil, newError("not_found", "title index is not available")
	}
	text, perr := p.str("text")
	if perr != nil {
		return nil, perr
	}
	return map[string]any{"success": true, "mentions": d.titles.Scan(text)}, nil
}
