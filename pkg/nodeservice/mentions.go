package nodeservice

import (
	"context"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/nodeid"
)

// syncMentions implements §4.7.6's sync-on-update: diff the old and new
// extracted mention sets and replace the stored edges in one call.
// Individual failures are logged and swallowed so they can never abort the
// content update that triggered them.
func (s *Service) syncMentions(ctx context.Context, n *store.Node) {
	rootID, err := s.mentionRootID(ctx, n.ID, n.NodeType)
	if err != nil {
		s.log.Warn("nodeservice: mention sync: failed to resolve root", "node_id", n.ID, "error", err)
		return
	}

	targets := dedupeSelfAndRoot(nodeid.ExtractMentions(n.Content), n.ID, rootID)

	if err := s.store.ReplaceOutgoingMentions(ctx, n.ID, rootID, targets); err != nil {
		s.log.Warn("nodeservice: mention sync: failed to replace edges", "node_id", n.ID, "error", err)
		return
	}

	s.bus.Publish(eventbus.Event{
		Kind:           eventbus.EdgeUpdated,
		NodeID:         n.ID,
		SourceClientID: s.clientID,
		Edge:           eventbus.EdgeRelationship{Kind: "mentions", SourceID: n.ID, RootID: rootID},
	})
}

// mentionRootID computes the root_id a mentions edge from id carries
// (§3.2): a task's own id, since a task is its own container regardless of
// where it sits in the hierarchy, or its hierarchical root for every other
// node type.
func (s *Service) mentionRootID(ctx context.Context, id, nodeType string) (string, error) {
	if nodeType == store.NodeTypeTask {
		return id, nil
	}
	return s.GetRootID(ctx, id)
}

// dedupeSelfAndRoot drops self-mentions and a child mentioning its own
// root, the two mention shapes the invariant forbids.
func dedupeSelfAndRoot(ids []string, selfID, rootID string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == selfID {
			continue
		}
		if selfID != rootID && id == rootID {
			continue
		}
		out = append(out, id)
	}
	return out
}

// CreateMention adds one mention edge source->target, rejecting self-
// mentions and a child mentioning its own root. It is idempotent: calling
// it twice with the same pair leaves the same edge set.
func (s *Service) CreateMention(ctx context.Context, sourceID, targetID string) error {
	if sourceID == targetID {
		return &store.InvalidUpdateError{Reason: "a node cannot mention itself"}
	}
	source, err := s.store.GetNode(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return &store.NodeNotFoundError{ID: sourceID}
	}
	rootID, err := s.mentionRootID(ctx, sourceID, source.NodeType)
	if err != nil {
		return err
	}
	if sourceID != rootID && targetID == rootID {
		return &store.InvalidUpdateError{Reason: "a node cannot mention its own root"}
	}

	existing, err := s.store.GetOutgoingMentions(ctx, sourceID)
	if err != nil {
		return err
	}
	targets := make([]string, 0, len(existing)+1)
	for _, m := range existing {
		targets = append(targets, m.TargetID)
		if m.TargetID == targetID {
			return nil // already present
		}
	}
	targets = append(targets, targetID)
	return s.store.ReplaceOutgoingMentions(ctx, sourceID, rootID, targets)
}

// GetOutgoingMentions returns sourceID's current mention targets.
func (s *Service) GetOutgoingMentions(ctx context.Context, sourceID string) ([]store.MentionEdge, error) {
	return s.store.GetOutgoingMentions(ctx, sourceID)
}

// GetIncomingMentions returns every mention edge pointing at targetID.
func (s *Service) GetIncomingMentions(ctx context.Context, targetID string) ([]store.MentionEdge, error) {
	return s.store.GetIncomingMentions(ctx, targetID)
}

// GetMentioningContainers implements back-links at container granularity:
// the distinct set of root ids of nodes mentioning targetID, except that a
// mentioning node of type "task" is considered its own container.
func (s *Service) GetMentioningContainers(ctx context.Context, targetID string) ([]string, error) {
	mentions, err := s.store.GetIncomingMentions(ctx, targetID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(mentions))
	var out []string
	for _, m := range mentions {
		containerID := m.RootID
		if source, err := s.store.GetNode(ctx, m.SourceID); err == nil && source != nil && source.NodeType == store.NodeTypeTask {
			containerID = m.SourceID
		}
		if !seen[containerID] {
			seen[containerID] = true
			out = append(out, containerID)
		}
	}
	return out, nil
}
