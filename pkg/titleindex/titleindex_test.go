package titleindex

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadFromStoreBuildsDictionaryFromTitledNodes(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "proj1", NodeType: store.NodeTypeText, Content: "kickoff notes", Title: "Project Atlas"}, ""))
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "plain", NodeType: store.NodeTypeText, Content: "no title here"}, ""))

	ix := New()
	require.NoError(t, ix.LoadFromStore(ctx, st))
	assert.Equal(t, 1, ix.Count())
}

func TestScanFindsKnownTitleAndMapsOriginalOffsets(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n1", NodeType: store.NodeTypeText, Content: "x", Title: "Project Atlas"}, ""))

	ix := New()
	require.NoError(t, ix.LoadFromStore(ctx, st))

	text := "See notes on Project Atlas before the meeting."
	mentions := ix.Scan(text)
	require.Len(t, mentions, 1)
	assert.Equal(t, "n1", mentions[0].NodeID)
	assert.Equal(t, "Project Atlas", text[mentions[0].Start:mentions[0].End])
}

func TestScanIsCaseInsensitiveAndPunctuationTolerant(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n1", NodeType: store.NodeTypeText, Content: "x", Title: "Bob's Notes"}, ""))

	ix := New()
	require.NoError(t, ix.LoadFromStore(ctx, st))

	mentions := ix.Scan("see BOB's notes here")
	require.Len(t, mentions, 1)
	assert.Equal(t, "n1", mentions[0].NodeID)
}

func TestRebuildExcludesSingleStopwordTitles(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n1", NodeType: store.NodeTypeText, Content: "x", Title: "the"}, ""))
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n2", NodeType: store.NodeTypeText, Content: "x", Title: "the Archive"}, ""))

	ix := New()
	require.NoError(t, ix.LoadFromStore(ctx, st))

	mentions := ix.Scan("put it in the archive")
	var foundN1, foundN2 bool
	for _, m := range mentions {
		if m.NodeID == "n1" {
			foundN1 = true
		}
		if m.NodeID == "n2" {
			foundN2 = true
		}
	}
	assert.False(t, foundN1, "a bare stopword title should never surface as a mention candidate")
	assert.True(t, foundN2, "a multi-word title starting with a stopword is still indexed")
}

func TestSuggestFiltersByPrefixCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n1", NodeType: store.NodeTypeText, Content: "x", Title: "Project Atlas"}, ""))
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n2", NodeType: store.NodeTypeText, Content: "x", Title: "Project Borealis"}, ""))
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n3", NodeType: store.NodeTypeText, Content: "x", Title: "Quarterly Review"}, ""))

	ix := New()
	require.NoError(t, ix.LoadFromStore(ctx, st))

	suggestions := ix.Suggest("proj", 0)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "Project Atlas", suggestions[0].Title)
	assert.Equal(t, "Project Borealis", suggestions[1].Title)
}

func TestSuggestRespectsLimit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n1", NodeType: store.NodeTypeText, Content: "x", Title: "Alpha"}, ""))
	require.NoError(t, st.CreateNode(ctx, &store.Node{ID: "n2", NodeType: store.NodeTypeText, Content: "x", Title: "Beta"}, ""))

	ix := New()
	require.NoError(t, ix.LoadFromStore(ctx, st))

	assert.Len(t, ix.Suggest("", 1), 1)
}

func TestUpsertAndRemoveRequireExplicitRebuild(t *testing.T) {
	ix := New()
	ix.Upsert("n1", "Fresh Title", store.NodeTypeText)
	assert.Equal(t, 1, ix.Count())
	assert.Empty(t, ix.Scan("Fresh Title appears here"), "scan reflects the last Rebuild, not pending cache writes")

	require.NoError(t, ix.Rebuild())
	assert.Len(t, ix.Scan("Fresh Title appears here"), 1)

	ix.Remove("n1")
	assert.Equal(t, 0, ix.Count())
	require.NoError(t, ix.Rebuild())
	assert.Empty(t, ix.Scan("Fresh Title appears here"))
}

func TestUpsertWithEmptyTitleRemovesEntry(t *testing.T) {
	ix := New()
	ix.Upsert("n1", "Something", store.NodeTypeText)
	require.NoError(t, ix.Rebuild())
	assert.Equal(t, 1, ix.Count())

	ix.Upsert("n1", "", store.NodeTypeText)
	assert.Equal(t, 0, ix.Count())
}
