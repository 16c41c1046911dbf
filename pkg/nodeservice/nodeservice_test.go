package nodeservice

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/behavior"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/migration"
	"github.com/nodespace/core/pkg/schema"
	"github.com/stretchr/testify/require"
)

// fakeSchemas is a trivial in-memory SchemaLookup standing in for the
// not-yet-built schema service — enough for nodeservice's own tests, which
// only need GetSchemaDefinition.
type fakeSchemas struct {
	defs map[string]schema.Definition
}

func newFakeSchemas() *fakeSchemas {
	return &fakeSchemas{defs: make(map[string]schema.Definition)}
}

func (f *fakeSchemas) put(def schema.Definition) {
	f.defs[def.TypeName] = def
}

func (f *fakeSchemas) GetSchemaDefinition(ctx context.Context, typeName string) (*schema.Definition, bool, error) {
	def, ok := f.defs[typeName]
	if !ok {
		return nil, false, nil
	}
	return &def, true, nil
}

// fakeWaker records how many times Wake was called.
type fakeWaker struct {
	woken int
}

func (w *fakeWaker) Wake() { w.woken++ }

func newTestService(t *testing.T) (*Service, *fakeSchemas, *fakeWaker) {
	t.Helper()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	s := New(st, behavior.NewRegistry(), migration.NewRegistry(), eventbus.New(), nil)
	schemas := newFakeSchemas()
	s.SetSchemaLookup(schemas)
	waker := &fakeWaker{}
	s.SetEmbeddingWaker(waker)
	return s, schemas, waker
}

const taskSpokeTable = "spoke_task"

func taskSchema() schema.Definition {
	return schema.Definition{
		TypeName: store.NodeTypeTask,
		Version:  1,
		Fields: []schema.Field{
			{Name: "status", Kind: schema.FieldEnum, CoreValues: []string{"open", "done"}, Default: "open"},
		},
	}
}

// installTaskSchema registers the task schema with both the fake schema
// lookup and the store's spoke table, the two places a real schema service
// would keep in sync.
func installTaskSchema(t *testing.T, ctx context.Context, s *Service, schemas *fakeSchemas) schema.Definition {
	t.Helper()
	def := taskSchema()
	schemas.put(def)
	require.NoError(t, s.store.ExecDDL(ctx, schema.CreateSpokeTableDDL(def)))
	return def
}
