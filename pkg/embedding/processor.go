package embedding

import (
	"context"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/markdown"
)

// processRoot reassembles rootID's canonical text and writes a fresh
// embedding for it. If the root vanished or stopped being embeddable
// between the claim and now, the claim is silently discarded per §4.10's
// cancellation rule — there is nothing stale left to correct.
func (p *Processor) processRoot(ctx context.Context, rootID string) error {
	root, err := p.store.GetNode(ctx, rootID)
	if err != nil {
		return fmt.Errorf("embedding: load root %q: %w", rootID, err)
	}
	if root == nil || !isEmbeddableRoot(root.NodeType) {
		return nil
	}

	text, err := markdown.RenderTree(ctx, p.store, rootID)
	if err != nil {
		return fmt.Errorf("embedding: render root %q: %w", rootID, err)
	}

	if p.provider == nil {
		return fmt.Errorf("embedding: no provider configured")
	}
	vector, err := p.provider.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding: embed root %q: %w", rootID, err)
	}

	if err := p.store.WriteEmbedding(ctx, rootID, vector); err != nil {
		return fmt.Errorf("embedding: write embedding for %q: %w", rootID, err)
	}
	return nil
}

// sweepOrphans reaps vectors left behind by deleted roots (§4.10 "orphan
// cleanup"). Run once per pass, after the stale queue has been drained, so
// a root that was simultaneously re-created under the same ID (unlikely,
// since IDs are UUIDs, but possible for date nodes) is never reaped out
// from under a fresh write.
func (p *Processor) sweepOrphans(ctx context.Context) {
	ids, err := p.store.ListOrphanedEmbeddings(ctx, p.batchSize)
	if err != nil {
		p.log.Warn("embedding: failed to list orphaned embeddings", "error", err)
		return
	}
	for _, id := range ids {
		if err := p.store.DeleteEmbedding(ctx, id); err != nil {
			p.log.Warn("embedding: failed to delete orphaned embedding", "root_id", id, "error", err)
		}
	}
}

// isEmbeddableRoot mirrors nodeservice's own isEmbeddableRoot: schema and
// collection nodes are structural, not content, and are never embedded.
// Duplicated rather than imported so this package has no dependency on
// nodeservice — only nodeservice depends on embedding's Wake method, via
// its own narrow EmbeddingWaker interface.
func isEmbeddableRoot(nodeType string) bool {
	switch nodeType {
	case store.NodeTypeSchema, store.NodeTypeCollection:
		return false
	default:
		return true
	}
}
