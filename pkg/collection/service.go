// Package collection implements the collection service (C10): colon-path
// resolution into a collection-node DAG, and membership add/remove/count
// over the member_of edge. It holds no store handle of its own — every
// mutation routes through the node service (C8), which is the sole emitter
// of the relationship events a client sees.
package collection

import (
	"context"
	"fmt"
	"strings"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/nodeservice"
)

// Service is the collection service (C10). The zero value is not usable;
// build one with New.
type Service struct {
	nodes *nodeservice.Service
}

// New builds a collection service over nodes.
func New(nodes *nodeservice.Service) *Service {
	return &Service{nodes: nodes}
}

// CollectionWithCount pairs a collection node with its direct member count,
// the projection get_all_collections_with_counts returns.
type CollectionWithCount struct {
	Node  *store.Node
	Count int
}

// GetAllCollectionsWithCounts implements get_all_collections_with_counts:
// every collection node paired with its direct member count via one scan
// plus one count query per collection.
func (s *Service) GetAllCollectionsWithCounts(ctx context.Context) ([]CollectionWithCount, error) {
	nodes, err := s.nodes.ListNodesByType(ctx, store.NodeTypeCollection)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionWithCount, 0, len(nodes))
	for _, n := range nodes {
		count, err := s.nodes.CountMembers(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, CollectionWithCount{Node: n, Count: count})
	}
	return out, nil
}

// findByName looks up an existing collection node by case-insensitive name
// match against Content — the same collection reached through different
// path prefixes must resolve to the one node, so identity here is purely
// by name, never by path.
func (s *Service) findByName(ctx context.Context, name string) (*store.Node, error) {
	nodes, err := s.nodes.ListNodesByType(ctx, store.NodeTypeCollection)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if strings.EqualFold(n.Content, name) {
			return n, nil
		}
	}
	return nil, nil
}

// ResolvePath implements resolve_path: idempotently creates each
// colon-separated segment as a collection node (content = segment name) and
// links every adjacent pair child -> parent via member_of. Returns the leaf
// collection's id. Segments may contain spaces, digits, and any punctuation
// except the ":" separator; existence comparison is case-insensitive.
func (s *Service) ResolvePath(ctx context.Context, path string) (string, error) {
	segments := strings.Split(path, ":")
	var parentID string
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return "", &store.InvalidPropertiesError{Reason: fmt.Sprintf("collection path %q has an empty segment", path)}
		}

		node, err := s.findByName(ctx, seg)
		if err != nil {
			return "", err
		}
		if node == nil {
			node, err = s.nodes.CreateNodeWithParent(ctx, nodeservice.CreateParams{
				NodeType: store.NodeTypeCollection,
				Content:  seg,
			})
			if err != nil {
				return "", err
			}
		}

		if i > 0 {
			if err := s.AddToCollection(ctx, node.ID, parentID); err != nil {
				return "", err
			}
		}
		parentID = node.ID
	}
	return parentID, nil
}
