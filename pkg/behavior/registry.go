// Package behavior implements the behavior registry (C5): a lookup from
// node_type to a validator that enforces minimal per-type shape invariants
// before a write ever reaches schema validation.
package behavior

import (
	"fmt"
	"strings"

	"github.com/nodespace/core/internal/store"
)

// Validator enforces a node type's minimal invariants. It receives the
// node as it will be written (after merge) and returns a descriptive error
// if the shape is wrong.
type Validator func(n *store.Node) error

// Registry maps node_type to its Validator. Types with no registered
// validator fall back to Generic.
type Registry struct {
	validators map[string]Validator
}

// NewRegistry returns a registry pre-populated with validators for every
// built-in node type.
func NewRegistry() *Registry {
	r := &Registry{validators: make(map[string]Validator)}
	r.Register(store.NodeTypeCodeBlock, validateCodeBlock)
	r.Register(store.NodeTypeQuoteBlock, validateQuoteBlock)
	r.Register(store.NodeTypeTask, validateTask)
	r.Register(store.NodeTypeHeader, Generic)
	r.Register(store.NodeTypeText, Generic)
	r.Register(store.NodeTypeOrderedList, Generic)
	r.Register(store.NodeTypeDate, Generic)
	r.Register(store.NodeTypeCollection, Generic)
	return r
}

// Register installs (or replaces) the validator for nodeType.
func (r *Registry) Register(nodeType string, v Validator) {
	r.validators[nodeType] = v
}

// Validate runs the registered validator for n.NodeType, or Generic if
// none was registered — unknown/user-defined types always fall back to
// Generic, never to a hard error, matching "unknown types fall back to a
// generic validator".
func (r *Registry) Validate(n *store.Node) error {
	v, ok := r.validators[n.NodeType]
	if !ok {
		v = Generic
	}
	return v(n)
}

// Generic enforces only the universal rule every node type must satisfy:
// properties must decode as a JSON object.
func Generic(n *store.Node) error {
	if len(n.Properties) == 0 {
		return nil
	}
	trimmed := strings.TrimSpace(string(n.Properties))
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("behavior: properties must be a JSON object, got %q", trimmed)
	}
	return nil
}

func validateCodeBlock(n *store.Node) error {
	if err := Generic(n); err != nil {
		return err
	}
	// Empty content is allowed; a code block carrying content must open with
	// its ``` fence, the same shape the Markdown importer stores.
	if n.Content != "" && !strings.HasPrefix(strings.TrimLeft(n.Content, " \t"), "```") {
		return fmt.Errorf("behavior: code-block content must open with a ``` fence")
	}
	return nil
}

func validateQuoteBlock(n *store.Node) error {
	if err := Generic(n); err != nil {
		return err
	}
	for _, line := range strings.Split(n.Content, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed != "" && !strings.HasPrefix(trimmed, ">") {
			return fmt.Errorf("behavior: quote-block lines must begin with '>'")
		}
	}
	return nil
}

var taskStatuses = map[string]bool{"open": true, "done": true}

func validateTask(n *store.Node) error {
	if err := Generic(n); err != nil {
		return err
	}
	status, ok := taskStatus(n)
	if !ok {
		return nil // status is optional; absence defaults elsewhere
	}
	if !taskStatuses[status] {
		return fmt.Errorf("behavior: task status must be \"open\" or \"done\", got %q", status)
	}
	return nil
}

func taskStatus(n *store.Node) (string, bool) {
	props, err := n.DecodeProperties()
	if err != nil {
		return "", false
	}
	v, ok := props["status"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
