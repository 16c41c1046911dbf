package markdown

import (
	"context"
	"fmt"
	"strings"

	"github.com/nodespace/core/internal/store"
)

// ExportResult is §4.11.2's `get_markdown_from_node_id` response shape.
type ExportResult struct {
	Markdown   string
	NodeCount  int
	RootNodeID string
}

// Export implements §4.11.2: a depth-first walk from rootID emitting each
// node's canonical text (§6.2, shared with the embedding pipeline via
// CanonicalText), optionally followed by an `<!-- id: ... -->` comment,
// cut off at maxDepth (0 means unbounded). includeChildren=false exports
// only the root itself.
func Export(ctx context.Context, st store.Store, rootID string, includeChildren, includeNodeIDs bool, maxDepth int) (*ExportResult, error) {
	root, err := st.GetNode(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &store.NodeNotFoundError{ID: rootID}
	}

	var b strings.Builder
	count := 0
	exportNode(root, 0, includeNodeIDs, &b, &count)

	if includeChildren {
		if err := exportChildren(ctx, st, root, 1, 0, maxDepth, includeNodeIDs, &b, &count); err != nil {
			return nil, err
		}
	}

	return &ExportResult{Markdown: b.String(), NodeCount: count, RootNodeID: rootID}, nil
}

// exportChildren recurses over n's children (ascending order, depth-first),
// omitting any subtree whose depth has reached maxDepth (when maxDepth > 0).
// listDepth tracks nesting within a contiguous run of bullet list items
// under their enclosing text paragraph, independent of the tree depth used
// for the max_depth cutoff.
func exportChildren(ctx context.Context, st store.Store, n *store.Node, depth, listDepth, maxDepth int, includeNodeIDs bool, b *strings.Builder, count *int) error {
	if maxDepth > 0 && depth >= maxDepth {
		return nil
	}

	children, err := st.GetChildren(ctx, n.ID)
	if err != nil {
		return err
	}
	for _, edge := range children {
		child, err := st.GetNode(ctx, edge.ChildID)
		if err != nil {
			return err
		}
		if child == nil {
			continue
		}

		childListDepth := 0
		if strings.HasPrefix(CanonicalText(child), "- ") {
			childListDepth = listDepth + 1
		}

		exportNode(child, childListDepth, includeNodeIDs, b, count)
		if err := exportChildren(ctx, st, child, depth+1, childListDepth, maxDepth, includeNodeIDs, b, count); err != nil {
			return err
		}
	}
	return nil
}

// exportNode writes n's canonical text line (indented by 2 spaces per
// listDepth beyond the first, per §4.11.2) and, if requested, its trailing
// id comment.
func exportNode(n *store.Node, listDepth int, includeNodeIDs bool, b *strings.Builder, count *int) {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	if listDepth > 1 {
		b.WriteString(strings.Repeat("  ", listDepth-1))
	}
	b.WriteString(CanonicalText(n))
	*count++

	if includeNodeIDs {
		b.WriteByte('\n')
		fmt.Fprintf(b, "<!-- id: %s -->", n.ID)
	}
}
