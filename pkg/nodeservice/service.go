// Package nodeservice implements the node service (C8): the primary API
// surface for creating, reading, updating, moving and deleting nodes, and
// the hard core of the repository — hierarchy maintenance, mention sync,
// relationship CRUD and subtree traversal all live here, built on top of
// the store façade (C3), the behavior registry (C5) and the migration
// registry (C6), and emitting every domain event onto the bus (C7).
package nodeservice

import (
	"context"
	"log/slog"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/behavior"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/migration"
	"github.com/nodespace/core/pkg/schema"
)

// SchemaLookup is the narrow view of the schema service (C9) the node
// service needs. It is defined here rather than imported from
// pkg/schemaservice to avoid a cycle: the schema service wraps this
// service, so it must depend on nodeservice, not the other way around.
// Wiring happens late, via SetSchemaLookup.
type SchemaLookup interface {
	GetSchemaDefinition(ctx context.Context, typeName string) (*schema.Definition, bool, error)
}

// EmbeddingWaker is the narrow view of the embedding processor (C11) the
// node service needs: a non-blocking nudge that new stale work exists.
type EmbeddingWaker interface {
	Wake()
}

// Service is the node service (C8). The zero value is not usable; build one
// with New.
type Service struct {
	store      store.Store
	behaviors  *behavior.Registry
	migrations *migration.Registry
	bus        *eventbus.Bus
	schemas    SchemaLookup
	waker      EmbeddingWaker
	log        *slog.Logger

	// clientID tags every event this service instance emits. A zero-value
	// Service carries no client identity; WithClient returns a clone that
	// does.
	clientID string
}

// New builds the node service over st, registering itself as st's notifier
// so that every committed store mutation becomes exactly one domain event —
// the service never emits Node* events itself, only Edge*/Relationship*
// ones that the store layer has no notion of.
func New(st store.Store, behaviors *behavior.Registry, migrations *migration.Registry, bus *eventbus.Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:      st,
		behaviors:  behaviors,
		migrations: migrations,
		bus:        bus,
		log:        log,
	}
	st.SetNotifier(s.handleStoreChange)
	return s
}

// SetSchemaLookup wires in the schema service once it has been constructed.
// Node types with no schema registered behave as schema-less: create/update
// skip default-application and field validation entirely.
func (s *Service) SetSchemaLookup(l SchemaLookup) {
	s.schemas = l
}

// SetEmbeddingWaker wires in the embedding processor once it has been
// constructed. Until this is called, stale roots are still marked but no
// wake signal is sent — the processor's own poll-free loop simply won't run
// until something calls it directly, which is harmless during startup
// wiring order.
func (s *Service) SetEmbeddingWaker(w EmbeddingWaker) {
	s.waker = w
}

// WithClient returns a clone of s that tags every event it emits (directly,
// or via the store notifier) with clientID, so the originating client can
// filter its own echo back out of the bus.
func (s *Service) WithClient(clientID string) *Service {
	clone := *s
	clone.clientID = clientID
	return &clone
}

// handleStoreChange is registered as the store's notifier. It is the sole
// source of Node{Created,Updated,Deleted} events — centralizing emission
// here means every store-level write path, including bulk import, produces
// events without each call site remembering to publish one.
func (s *Service) handleStoreChange(c store.StoreChange) {
	var kind eventbus.Kind
	switch c.Operation {
	case store.ChangeCreated:
		kind = eventbus.NodeCreated
	case store.ChangeUpdated:
		kind = eventbus.NodeUpdated
	case store.ChangeDeleted:
		kind = eventbus.NodeDeleted
	default:
		return
	}
	s.bus.Publish(eventbus.Event{
		Kind:           kind,
		NodeID:         c.NodeID,
		Data:           c.Node,
		SourceClientID: c.SourceClientID,
	})
}

// Store returns the underlying store façade for read-only components that
// walk the graph directly rather than through a node-service write path —
// the Markdown exporter and the embedding pipeline's root-aggregate
// rendering, both of which only ever call GetNode/GetChildren.
func (s *Service) Store() store.Store {
	return s.store
}

// GetSchemaNode returns the raw schema node for typeName, or nil if no
// schema has been defined for it. Exposed so the schema service (C9), which
// wraps this one, never needs its own direct store handle.
func (s *Service) GetSchemaNode(ctx context.Context, typeName string) (*store.Node, error) {
	return s.store.GetSchemaNode(ctx, typeName)
}

// ListSchemaNodes returns every stored schema node.
func (s *Service) ListSchemaNodes(ctx context.Context) ([]*store.Node, error) {
	return s.store.ListSchemaNodes(ctx)
}

// queueEmbedding marks rootID stale and wakes the embedding processor.
// Failures are logged and swallowed: embedding-queue failures inside a
// user-initiated write must never abort the primary operation.
func (s *Service) queueEmbedding(ctx context.Context, rootID string) {
	if rootID == "" {
		return
	}
	if err := s.store.MarkRootStale(ctx, rootID); err != nil {
		s.log.Warn("nodeservice: failed to queue embedding", "root_id", rootID, "error", err)
		return
	}
	if s.waker != nil {
		s.waker.Wake()
	}
}
