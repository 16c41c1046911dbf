// Package migration implements the migration registry (C6): a sequenced
// map from (type_name, from_version) to a pure transform over a node's
// properties, applied lazily whenever a read finds a node's
// _schema_version behind the current schema version.
package migration

import (
	"encoding/json"
	"fmt"

	"github.com/nodespace/core/internal/store"
)

func marshalProperties(props map[string]any) (json.RawMessage, error) {
	encoded, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(encoded), nil
}

// Transform rewrites n's properties in place to advance it by exactly one
// schema version. It must be pure: same input, same output, no I/O.
type Transform func(n *store.Node) error

type key struct {
	typeName    string
	fromVersion int
}

// Registry holds one Transform per (type_name, from_version) step.
type Registry struct {
	transforms map[key]Transform
}

// NewRegistry returns an empty migration registry.
func NewRegistry() *Registry {
	return &Registry{transforms: make(map[key]Transform)}
}

// Register installs the transform that advances typeName from fromVersion
// to fromVersion+1.
func (r *Registry) Register(typeName string, fromVersion int, t Transform) {
	r.transforms[key{typeName, fromVersion}] = t
}

// Migrate applies the chain of transforms needed to bring n's
// _schema_version up to targetVersion, returning the number of steps
// applied. It stops and returns an error if a required step has no
// registered transform — a gap in the chain must never silently skip.
func (r *Registry) Migrate(n *store.Node, targetVersion int) (int, error) {
	current, err := schemaVersion(n)
	if err != nil {
		return 0, err
	}

	applied := 0
	for current < targetVersion {
		t, ok := r.transforms[key{n.NodeType, current}]
		if !ok {
			return applied, fmt.Errorf("migration: no transform for %q from version %d", n.NodeType, current)
		}
		if err := t(n); err != nil {
			return applied, fmt.Errorf("migration: %q step %d->%d: %w", n.NodeType, current, current+1, err)
		}
		current++
		if err := setSchemaVersion(n, current); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func schemaVersion(n *store.Node) (int, error) {
	props, err := n.DecodeProperties()
	if err != nil {
		return 0, fmt.Errorf("migration: decode properties: %w", err)
	}
	raw, ok := props[store.SchemaVersionKey]
	if !ok {
		return 0, nil
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("migration: %s must be a number, got %T", store.SchemaVersionKey, raw)
	}
	return int(f), nil
}

func setSchemaVersion(n *store.Node, version int) error {
	props, err := n.DecodeProperties()
	if err != nil {
		return fmt.Errorf("migration: decode properties: %w", err)
	}
	props[store.SchemaVersionKey] = version
	encoded, err := marshalProperties(props)
	if err != nil {
		return fmt.Errorf("migration: encode properties: %w", err)
	}
	n.Properties = encoded
	return nil
}
