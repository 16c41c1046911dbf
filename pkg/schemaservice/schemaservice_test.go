package schemaservice

import (
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/behavior"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/migration"
	"github.com/nodespace/core/pkg/nodeservice"
	"github.com/nodespace/core/pkg/schema"
	"github.com/stretchr/testify/require"
)

// newTestService builds a real nodeservice.Service wired to a real
// schemaservice.Service, the way cmd/nodespace wires them in production —
// exercising the same SetSchemaLookup round trip.
func newTestService(t *testing.T) (*Service, *nodeservice.Service) {
	t.Helper()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	nodes := nodeservice.New(st, behavior.NewRegistry(), migration.NewRegistry(), eventbus.New(), nil)
	schemas := New(nodes)
	nodes.SetSchemaLookup(schemas)
	return schemas, nodes
}

func projectDef() schema.Definition {
	return schema.Definition{
		TypeName: "project",
		Version:  1,
		Fields: []schema.Field{
			{Name: "status", Kind: schema.FieldEnum, Protection: schema.ProtectionCore,
				CoreValues: []string{"open", "closed"}, Default: "open", Extensible: true},
		},
	}
}
