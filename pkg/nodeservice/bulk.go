package nodeservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/schema"
)

// BulkRow is one row of a bulk hierarchy insert — the shape the Markdown
// importer (C12) produces for a whole parsed document tree.
type BulkRow struct {
	ID         string
	NodeType   string
	Content    string
	ParentID   string // empty for the root row
	Order      float64
	Properties map[string]any
}

// BulkCreateHierarchy implements §4.7.8, the import hot path: pre-fetch
// each unique type's schema once, validate every row before any write,
// resolve the common root once, then delegate to the store's single
// atomic batched insert. O(N+U) for N rows and U unique types.
func (s *Service) BulkCreateHierarchy(ctx context.Context, rows []BulkRow) error {
	if len(rows) == 0 {
		return nil
	}

	defs := make(map[string]*schema.Definition)
	now := time.Now().UTC()

	nodes := make([]*store.Node, 0, len(rows))
	edges := make([]store.HierarchyEdge, 0, len(rows))

	for _, r := range rows {
		def, err := s.cachedSchema(ctx, defs, r.NodeType)
		if err != nil {
			return &store.BulkOperationFailedError{Reason: err.Error()}
		}

		props := r.Properties
		if props == nil {
			props = map[string]any{}
		}
		if def != nil && len(def.Fields) > 0 {
			applyFieldDefaults(def.Fields, props)
			if err := validateFields(def.Fields, props); err != nil {
				return &store.BulkOperationFailedError{Reason: fmt.Sprintf("row %q: %v", r.ID, err)}
			}
			props[store.SchemaVersionKey] = float64(def.Version)
		}

		encoded, err := json.Marshal(props)
		if err != nil {
			return &store.BulkOperationFailedError{Reason: err.Error()}
		}

		n := &store.Node{
			ID:              r.ID,
			NodeType:        r.NodeType,
			Content:         r.Content,
			Properties:      encoded,
			CreatedAt:       now,
			ModifiedAt:      now,
			LifecycleStatus: store.LifecycleActive,
		}
		if err := s.behaviors.Validate(n); err != nil {
			return &store.BulkOperationFailedError{Reason: fmt.Sprintf("row %q: %v", r.ID, err)}
		}
		nodes = append(nodes, n)

		if r.ParentID != "" {
			edges = append(edges, store.HierarchyEdge{ParentID: r.ParentID, ChildID: r.ID, Order: r.Order})
		}
	}

	var resolvedRoot string
	for _, r := range rows {
		if r.ParentID != "" {
			root, err := s.GetRootID(ctx, r.ParentID)
			if err != nil {
				return &store.BulkOperationFailedError{Reason: err.Error()}
			}
			resolvedRoot = root
			break
		}
	}

	if err := s.store.BulkCreateHierarchy(ctx, nodes, edges, s.clientID); err != nil {
		return &store.BulkOperationFailedError{Reason: err.Error()}
	}

	if resolvedRoot != "" {
		s.queueEmbedding(ctx, resolvedRoot)
	} else {
		for _, n := range nodes {
			if isEmbeddableRoot(n.NodeType) {
				if _, hasParent := edgeParent(edges, n.ID); !hasParent {
					s.queueEmbedding(ctx, n.ID)
				}
			}
		}
	}

	return nil
}

func (s *Service) cachedSchema(ctx context.Context, cache map[string]*schema.Definition, nodeType string) (*schema.Definition, error) {
	if def, ok := cache[nodeType]; ok {
		return def, nil
	}
	if s.schemas == nil {
		cache[nodeType] = nil
		return nil, nil
	}
	def, ok, err := s.schemas.GetSchemaDefinition(ctx, nodeType)
	if err != nil {
		return nil, err
	}
	if !ok {
		cache[nodeType] = nil
		return nil, nil
	}
	cache[nodeType] = def
	return def, nil
}

func edgeParent(edges []store.HierarchyEdge, childID string) (string, bool) {
	for _, e := range edges {
		if e.ChildID == childID {
			return e.ParentID, true
		}
	}
	return "", false
}
