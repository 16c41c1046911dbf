package nodeservice

import (
	"context"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/schema"
)

// TaskNode is the typed hub-spoke read for the built-in task type
// (get_task_node): the hub node plus its decoded spoke fields, so callers
// don't have to round-trip Status through the generic properties bag.
type TaskNode struct {
	*store.Node
	Status string
}

// GetTaskNode implements get_task_node: it joins the hub record with the
// task spoke row in one read. A node that exists but predates the task
// schema (or was created before a spoke table existed) reports its status
// as whatever properties already carries, falling back to "open".
func (s *Service) GetTaskNode(ctx context.Context, id string) (*TaskNode, error) {
	n, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	if n.NodeType != store.NodeTypeTask {
		return nil, &store.InvalidUpdateError{Reason: fmt.Sprintf("node %q is not a task", id)}
	}

	status := "open"
	if props, perr := n.DecodeProperties(); perr == nil {
		if v, ok := props["status"].(string); ok {
			status = v
		}
	}

	if s.schemas != nil {
		if def, ok, derr := s.schemas.GetSchemaDefinition(ctx, store.NodeTypeTask); derr == nil && ok {
			row, rerr := s.store.GetSpokeRow(ctx, def.SpokeTableName(), id, []string{"f_status"})
			if rerr == nil && row != nil {
				for _, f := range def.Fields {
					if f.Name != "status" {
						continue
					}
					if decoded, derr := schema.DecodeFieldValue(f, row["f_status"]); derr == nil {
						if v, ok := decoded.(string); ok && v != "" {
							status = v
						}
					}
				}
			}
		}
	}

	return &TaskNode{Node: n, Status: status}, nil
}
