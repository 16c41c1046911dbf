package collection

import (
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/behavior"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/migration"
	"github.com/nodespace/core/pkg/nodeservice"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *nodeservice.Service) {
	t.Helper()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	nodes := nodeservice.New(st, behavior.NewRegistry(), migration.NewRegistry(), eventbus.New(), nil)
	return New(nodes), nodes
}
