package embedding

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nodespace/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns a deterministic vector derived from the input's
// length, so assertions can tell which text was actually embedded without
// any real network call.
type stubProvider struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (p *stubProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return nil, fmt.Errorf("stub: forced failure")
	}
	p.calls = append(p.calls, text)
	vec := make([]float32, 768)
	vec[0] = float32(len(text))
	return vec, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunPassEmbedsStaleRootUsingRenderedSubtreeText(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	provider := &stubProvider{}
	p := NewProcessor(st, provider, nil)

	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "root", NodeType: store.NodeTypeText, Content: "root text"}, ""))
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "child", NodeType: store.NodeTypeText, Content: "child text"}, ""))
	require.NoError(t, st.ReparentNode(ctx, "child", "root", 1.0))
	require.NoError(t, st.MarkRootStale(ctx, "root"))

	p.runPass(ctx)

	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, []string{"root text\nchild text"}, provider.calls)

	has, err := st.HasEmbedding(ctx, "root")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRunPassDiscardsClaimForDeletedRoot(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	provider := &stubProvider{}
	p := NewProcessor(st, provider, nil)

	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "root", NodeType: store.NodeTypeText}, ""))
	require.NoError(t, st.MarkRootStale(ctx, "root"))
	_, err := st.DeleteNode(ctx, "root", 1, "")
	require.NoError(t, err)

	p.runPass(ctx)

	assert.Equal(t, 0, provider.callCount())
	has, err := st.HasEmbedding(ctx, "root")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRunPassSkipsNonEmbeddableRoot(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	provider := &stubProvider{}
	p := NewProcessor(st, provider, nil)

	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "coll", NodeType: store.NodeTypeCollection, Content: "work"}, ""))
	require.NoError(t, st.MarkRootStale(ctx, "coll"))

	p.runPass(ctx)

	assert.Equal(t, 0, provider.callCount())
}

func TestRunPassSweepsOrphanedEmbeddingsAfterDrainingQueue(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := NewProcessor(st, &stubProvider{}, nil)

	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "root", NodeType: store.NodeTypeText}, ""))
	require.NoError(t, st.WriteEmbedding(ctx, "root", make([]float32, 768)))
	_, err := st.DeleteNode(ctx, "root", 1, "")
	require.NoError(t, err)

	orphans, err := st.ListOrphanedEmbeddings(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"root"}, orphans)

	p.runPass(ctx)

	orphans, err = st.ListOrphanedEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestWakeCoalescesWithoutBlocking(t *testing.T) {
	p := NewProcessor(newTestStore(t), &stubProvider{}, nil)
	p.Wake()
	p.Wake()
	p.Wake()
	assert.Len(t, p.wake, 1, "repeated wakes before a pass runs should coalesce into one pending signal")
}

func TestRunProcessesAnInitialPassBeforeAnyWake(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := newTestStore(t)
	provider := &stubProvider{}
	p := NewProcessor(st, provider, nil)

	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "root", NodeType: store.NodeTypeText, Content: "hello"}, ""))
	require.NoError(t, st.MarkRootStale(ctx, "root"))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		has, err := st.HasEmbedding(ctx, "root")
		return err == nil && has
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestNewProviderRejectsIncompleteConfig(t *testing.T) {
	_, err := NewProvider(Config{Provider: ProviderGoogle})
	assert.Error(t, err)

	_, err = NewProvider(Config{Provider: ProviderOpenRouter})
	assert.Error(t, err)

	_, err = NewProvider(Config{Provider: "unknown"})
	assert.Error(t, err)
}
