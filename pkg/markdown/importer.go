package markdown

import (
	"context"
	"strings"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/nodeid"
	"github.com/nodespace/core/pkg/nodeservice"
)

// ImportResult is §4.11.1's commit response shape.
type ImportResult struct {
	Success      bool
	NodesCreated int
	Nodes        []*store.Node
	NodeIDs      []string
	RootID       string
}

// stackEntry is one frame of the heading-hierarchy stack (§4.11.1's
// deterministic algorithm): the node a new heading of a lower-or-equal
// level must pop past, or the node a body block currently attaches under.
type stackEntry struct {
	level int // heading level; 0 for the synthetic root frame
	id    string
}

// listEntry tracks one open run of bullet list items so nested items
// attach to their immediate list ancestor instead of the surrounding
// heading.
type listEntry struct {
	indent int
	id     string
	keep   bool // whether this run's "- " prefix is kept (§4.11.1)
}

// Import implements §4.11.1: parse markdown_content into a node tree and
// commit it in one bulk-hierarchy call. With title, a container node
// (header if title itself starts with "#"s, else text) is created and every
// top-level block becomes its child; without title, the first block is the
// root and the rest attach under it.
func Import(ctx context.Context, nodes *nodeservice.Service, content, title string) (*ImportResult, error) {
	if len(content) > maxContentBytes {
		return nil, &ContentTooLargeError{Size: len(content)}
	}

	blocks := Scan(content)
	if len(blocks) == 0 && title == "" {
		return &ImportResult{Success: true}, nil
	}

	var rows []nodeservice.BulkRow
	var rootID string

	if title != "" {
		rootID = nodeid.NewUUID()
		rootType := blockText
		if isHeadingTitle(title) {
			rootType = blockHeader
		}
		rows = append(rows, nodeservice.BulkRow{ID: rootID, NodeType: rootType, Content: title})
		appendChildren(&rows, blocks, rootID)
	} else {
		first := blocks[0]
		rootID = nodeid.NewUUID()
		rows = append(rows, bulkRowFor(first, rootID, "", 1.0))
		appendChildrenAfter(&rows, blocks[1:], rootID, first.Kind == blockText && !first.IsListItem)
	}

	if err := nodes.BulkCreateHierarchy(ctx, rows); err != nil {
		return nil, err
	}

	result := &ImportResult{Success: true, NodesCreated: len(rows), RootID: rootID}
	for _, r := range rows {
		n, err := nodes.GetNode(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		result.Nodes = append(result.Nodes, n)
		result.NodeIDs = append(result.NodeIDs, r.ID)
	}
	return result, nil
}

// appendChildren runs the heading/list stack algorithm over blocks,
// appending one BulkRow per block to rows with order assigned left to
// right (1.0, 2.0, 3.0, ...) so document order survives as sibling order.
func appendChildren(rows *[]nodeservice.BulkRow, blocks []Block, rootID string) {
	appendChildrenAfter(rows, blocks, rootID, false)
}

// appendChildrenAfter is appendChildren for blocks that follow a root which
// may itself be a text paragraph; when rootIsParagraph is set, a list that
// opens the blocks nests under the root and keeps its "- " prefix.
func appendChildrenAfter(rows *[]nodeservice.BulkRow, blocks []Block, rootID string, rootIsParagraph bool) {
	headingStack := []stackEntry{{level: 0, id: rootID}}
	var listStack []listEntry
	lastParaKind, lastParaID := "", ""
	if rootIsParagraph {
		lastParaKind, lastParaID = blockText, rootID
	}
	order := 1.0

	for _, b := range blocks {
		if b.Kind == blockHeader {
			for len(headingStack) > 1 && headingStack[len(headingStack)-1].level >= b.Level {
				headingStack = headingStack[:len(headingStack)-1]
			}
			parent := headingStack[len(headingStack)-1].id
			id := nodeid.NewUUID()
			*rows = append(*rows, bulkRowFor(b, id, parent, order))
			order++
			headingStack = append(headingStack, stackEntry{level: b.Level, id: id})
			listStack = nil
			lastParaKind, lastParaID = "", ""
			continue
		}

		container := headingStack[len(headingStack)-1].id

		if b.IsListItem {
			for len(listStack) > 0 && listStack[len(listStack)-1].indent >= b.Indent {
				listStack = listStack[:len(listStack)-1]
			}

			var parent string
			var keep bool
			if len(listStack) > 0 {
				parent = listStack[len(listStack)-1].id
				keep = listStack[len(listStack)-1].keep
			} else {
				keep = lastParaKind == blockText
				if keep {
					parent = lastParaID
				} else {
					parent = container
				}
			}

			id := nodeid.NewUUID()
			content := b.Content
			if keep {
				content = "- " + content
			}
			*rows = append(*rows, nodeservice.BulkRow{ID: id, NodeType: blockText, Content: content, ParentID: parent, Order: order})
			order++
			listStack = append(listStack, listEntry{indent: b.Indent, id: id, keep: keep})
			continue
		}

		// Any non-heading, non-list-item block ends the current list run.
		listStack = nil
		id := nodeid.NewUUID()
		*rows = append(*rows, bulkRowFor(b, id, container, order))
		order++
		if b.Kind == blockText {
			lastParaKind, lastParaID = blockText, id
		} else {
			lastParaKind, lastParaID = "", ""
		}
	}
}

func bulkRowFor(b Block, id, parentID string, order float64) nodeservice.BulkRow {
	row := nodeservice.BulkRow{ID: id, NodeType: b.Kind, Content: b.Content, ParentID: parentID, Order: order}
	if b.Kind == blockTask {
		row.Properties = map[string]any{"status": b.Status}
	}
	return row
}

// isHeadingTitle reports whether title itself starts with a "#"-style
// heading marker, deciding whether the synthetic title container is a
// header or a plain text node.
func isHeadingTitle(title string) bool {
	return headingPattern.MatchString(strings.TrimLeft(title, " \t"))
}
