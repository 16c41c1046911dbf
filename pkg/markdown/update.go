package markdown

import (
	"context"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/nodeservice"
)

// UpdateResult is update_root_from_markdown's response shape (§4.11.1).
type UpdateResult struct {
	RootID       string
	NodesDeleted int
	NodesCreated int
}

// UpdateRoot implements update_root_from_markdown: replaces rootID's
// subtree wholesale — every descendant is deleted, then content is
// reparsed and rebuilt under the same root id, exactly as Import builds a
// fresh tree under a synthetic root. rootID itself, and its content/title,
// are left untouched; only what hangs beneath it changes.
func UpdateRoot(ctx context.Context, nodes *nodeservice.Service, rootID, content string) (*UpdateResult, error) {
	if len(content) > maxContentBytes {
		return nil, &ContentTooLargeError{Size: len(content)}
	}

	root, err := nodes.GetNode(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &store.NodeNotFoundError{ID: rootID}
	}

	deleted, err := nodes.DeleteDescendants(ctx, rootID)
	if err != nil {
		return nil, err
	}

	var rows []nodeservice.BulkRow
	appendChildren(&rows, Scan(content), rootID)

	if len(rows) > 0 {
		if err := nodes.BulkCreateHierarchy(ctx, rows); err != nil {
			return nil, err
		}
	}

	return &UpdateResult{RootID: rootID, NodesDeleted: deleted, NodesCreated: len(rows)}, nil
}
