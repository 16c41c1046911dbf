// Package markdown implements the Markdown importer/exporter (C12) and the
// node-to-text canonical forms (§6.2) shared between the exporter and the
// embedding pipeline's root-aggregate rendering.
package markdown

import (
	"context"
	"fmt"
	"strings"

	"github.com/nodespace/core/internal/store"
)

// CanonicalText renders a single node's content in the deterministic
// per-type form §6.2 defines: header/quote/code-block content already
// carries its own marker, task content has its checkbox derived from
// properties rather than stored in Content, and every other type is
// rendered verbatim.
func CanonicalText(n *store.Node) string {
	switch n.NodeType {
	case store.NodeTypeTask:
		box := "[ ]"
		if props, err := n.DecodeProperties(); err == nil {
			if status, _ := props["status"].(string); status == "done" {
				box = "[x]"
			}
		}
		return fmt.Sprintf("- %s %s", box, n.Content)
	case store.NodeTypeDate:
		if n.Content != "" {
			return n.Content
		}
		return n.ID
	default:
		// header, text, code-block, quote-block, and user-defined types all
		// carry their canonical marker (#, >, ```) in Content already.
		return n.Content
	}
}

// RenderTree assembles rootID's root-aggregate canonical text: a
// depth-first, ascending-order walk of the whole subtree, one line per
// node, in the same order the UI displays it. Shared by the Markdown
// exporter (full-fidelity output) and the embedding pipeline (the text
// that gets embedded).
func RenderTree(ctx context.Context, st store.Store, rootID string) (string, error) {
	root, err := st.GetNode(ctx, rootID)
	if err != nil {
		return "", err
	}
	if root == nil {
		return "", &store.NodeNotFoundError{ID: rootID}
	}

	var b strings.Builder
	if err := renderNode(ctx, st, root, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderNode(ctx context.Context, st store.Store, n *store.Node, b *strings.Builder) error {
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(CanonicalText(n))

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
		if err := renderNode(ctx, st, child, b); err != nil {
			return err
		}
	}
	return nil
}
