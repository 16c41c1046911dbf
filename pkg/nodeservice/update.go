package nodeservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/schema"
)

// UpdateNode implements §4.7.2's plain path: it reads the current version
// itself and uses it as the expected version, so a concurrent write between
// the read and the write surfaces as a VersionConflictError exactly as
// update_node_with_occ would, just without the caller supplying the
// expected version up front.
func (s *Service) UpdateNode(ctx context.Context, id string, update store.NodeUpdate) (*store.Node, error) {
	current, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &store.NodeNotFoundError{ID: id}
	}
	return s.updateNode(ctx, current, id, current.Version, update)
}

// UpdateNodeWithOCC implements update_node_with_occ: the caller supplies
// the version it last observed, and a mismatch (including "someone else
// updated it since you read it") is reported as a VersionConflictError
// carrying {expected, actual}.
func (s *Service) UpdateNodeWithOCC(ctx context.Context, id string, expectedVersion int, update store.NodeUpdate) (*store.Node, error) {
	current, err := s.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, &store.NodeNotFoundError{ID: id}
	}
	return s.updateNode(ctx, current, id, expectedVersion, update)
}

func (s *Service) updateNode(ctx context.Context, current *store.Node, id string, expectedVersion int, update store.NodeUpdate) (*store.Node, error) {
	if update.IsEmpty() {
		return nil, &store.InvalidUpdateError{Reason: "update must change at least one field"}
	}

	targetType := current.NodeType
	if update.NodeType != nil {
		targetType = *update.NodeType
	}

	if targetType == store.NodeTypeSchema {
		return s.updateSchemaNode(ctx, current, expectedVersion, update)
	}

	candidate := current.Clone()
	if update.NodeType != nil {
		candidate.NodeType = *update.NodeType
	}
	if update.Content != nil {
		candidate.Content = *update.Content
	}

	finalProps, err := mergeProperties(current.Properties, update.Properties)
	if err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}

	if s.schemas != nil {
		def, ok, err := s.schemas.GetSchemaDefinition(ctx, targetType)
		if err != nil {
			return nil, err
		}
		if ok && len(def.Fields) > 0 {
			applyFieldDefaults(def.Fields, finalProps)
			if err := validateFields(def.Fields, finalProps); err != nil {
				return nil, err
			}
			finalProps[store.SchemaVersionKey] = float64(def.Version)
		}
	}

	encodedFinal, err := json.Marshal(finalProps)
	if err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}
	candidate.Properties = encodedFinal

	if err := s.behaviors.Validate(candidate); err != nil {
		return nil, &store.ValidationFailedError{Reason: err.Error()}
	}

	update.Properties, err = replacementPatch(current.Properties, finalProps)
	if err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}

	updated, err := s.store.UpdateNode(ctx, id, expectedVersion, update, s.clientID)
	if err != nil {
		return nil, err
	}

	if update.Content != nil && *update.Content != current.Content {
		s.syncMentions(ctx, updated)
		rootID, rerr := s.GetRootID(ctx, updated.ID)
		if rerr != nil {
			s.log.Warn("nodeservice: failed to resolve root for embedding queue", "node_id", updated.ID, "error", rerr)
		} else {
			s.queueEmbedding(ctx, rootID)
		}
	}

	return updated, nil
}

// UpdateTaskStatus is the typed update path (update_task_node) for the
// built-in task type: it writes the spoke row and bumps the hub version
// atomically, so OCC and schema-field writes never drift apart.
func (s *Service) UpdateTaskStatus(ctx context.Context, id string, expectedVersion int, status string) (*store.Node, error) {
	if status != "open" && status != "done" {
		return nil, &store.ValidationFailedError{Reason: fmt.Sprintf("task status must be \"open\" or \"done\", got %q", status)}
	}
	if s.schemas == nil {
		return nil, &store.InvalidUpdateError{Reason: "no schema registered for task"}
	}
	def, ok, err := s.schemas.GetSchemaDefinition(ctx, store.NodeTypeTask)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &store.InvalidUpdateError{Reason: "no schema registered for task"}
	}
	cols, vals, err := schema.InsertColumns(*def, map[string]any{"status": status})
	if err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}
	return s.store.UpdateSpokeRowWithVersion(ctx, def.SpokeTableName(), id, expectedVersion, cols, vals, s.clientID)
}

// mergeProperties mirrors the store's own shallow-merge semantics (a nil
// patch value deletes the key) so nodeservice can compute the same final
// properties object the store will end up persisting, for validation
// purposes, before the write actually happens.
func mergeProperties(existing json.RawMessage, patch map[string]any) (map[string]any, error) {
	merged := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged, nil
}

// replacementPatch builds a patch that, applied by the store's own
// mergeProperties over existing, yields exactly final — including deleting
// keys that final omits but existing had (schema defaults/deletions
// computed here must actually reach the stored row, not just the
// validation-time candidate).
func replacementPatch(existing json.RawMessage, final map[string]any) (map[string]any, error) {
	existingMap := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &existingMap); err != nil {
			return nil, err
		}
	}
	patch := make(map[string]any, len(existingMap)+len(final))
	for k := range existingMap {
		if _, ok := final[k]; !ok {
			patch[k] = nil
		}
	}
	for k, v := range final {
		patch[k] = v
	}
	return patch, nil
}

// updateSchemaNode implements §4.7.2 step 4: regenerate spoke/relation DDL
// from the candidate schema.Definition and run the node write plus every
// DDL statement atomically.
func (s *Service) updateSchemaNode(ctx context.Context, current *store.Node, expectedVersion int, update store.NodeUpdate) (*store.Node, error) {
	if current.Version != expectedVersion {
		return nil, &store.VersionConflictError{NodeID: current.ID, ExpectedVersion: expectedVersion, ActualVersion: current.Version}
	}

	priorDef, err := decodeSchemaDefinition(current)
	if err != nil {
		return nil, err
	}

	candidate := current.Clone()
	if update.Content != nil {
		candidate.Content = *update.Content
	}
	if len(update.Properties) > 0 {
		merged, err := mergeProperties(current.Properties, update.Properties)
		if err != nil {
			return nil, &store.InvalidPropertiesError{Reason: err.Error()}
		}
		encoded, err := json.Marshal(merged)
		if err != nil {
			return nil, &store.InvalidPropertiesError{Reason: err.Error()}
		}
		candidate.Properties = encoded
	}

	updatedDef, err := decodeSchemaDefinition(candidate)
	if err != nil {
		return nil, err
	}
	updatedDef.Version = priorDef.Version + 1

	statements := schema.SyncSpokeTableDDL(priorDef, updatedDef)
	priorRelNames := map[string]bool{}
	for _, r := range priorDef.Relationships {
		priorRelNames[r.Name] = true
	}
	for _, rel := range updatedDef.Relationships {
		if !priorRelNames[rel.Name] {
			statements = append(statements, schema.CreateRelationTableDDL(updatedDef, rel)...)
		}
	}

	encodedDef, err := json.Marshal(updatedDef)
	if err != nil {
		return nil, &store.InvalidPropertiesError{Reason: err.Error()}
	}
	candidate.Content = string(encodedDef)
	if err := s.store.UpdateSchemaNodeAtomic(ctx, candidate, expectedVersion, statements, s.clientID); err != nil {
		return nil, fmt.Errorf("nodeservice: sync schema %q: %w", updatedDef.TypeName, err)
	}
	return candidate, nil
}
