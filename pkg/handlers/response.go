package handlers

import (
	"encoding/json"

	"github.com/nodespace/core/internal/store"
)

// nodeResult builds the wire projection of n: only the fields a handler
// result actually carries, mirroring the teacher's slim-response idiom of
// serializing just what the caller uses rather than the full internal
// struct (n.Clone()'s derived Mentions/MentionedBy/MemberOf slices are
// populated selectively per read path and omitted here when empty).
func nodeResult(n *store.Node) map[string]any {
	if n == nil {
		return nil
	}
	m := map[string]any{
		"id":          n.ID,
		"node_type":   n.NodeType,
		"content":     n.Content,
		"version":     n.Version,
		"created_at":  n.CreatedAt,
		"modified_at": n.ModifiedAt,
		"properties":  rawProperties(n.Properties),
	}
	if n.Title != "" {
		m["title"] = n.Title
	}
	if len(n.Mentions) > 0 {
		m["mentions"] = n.Mentions
	}
	if len(n.MentionedBy) > 0 {
		m["mentioned_by"] = n.MentionedBy
	}
	if len(n.MemberOf) > 0 {
		m["member_of"] = n.MemberOf
	}
	if n.LifecycleStatus != "" && n.LifecycleStatus != store.LifecycleActive {
		m["lifecycle_status"] = string(n.LifecycleStatus)
	}
	return m
}

// nodeResults projects a slice of nodes, skipping nils (a bulk read may
// return fewer rows than ids requested).
func nodeResults(nodes []*store.Node) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, nodeResult(n))
		}
	}
	return out
}

func rawProperties(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}
