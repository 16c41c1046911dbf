package handlers

import (
	"sync"

	"github.com/nodespace/core/internal/store"
)

// stringSlicePool pools the []string scratch buffers Dispatch's
// edge-to-id flattening uses (GetChildren/get_related_nodes-style
// handlers run on the UI's hot path — every hierarchy render walks a
// fresh set of edges). The buffer never escapes idsFromEdges: it is
// filled, copied into an exactly-sized result, and returned to the pool
// before the function returns, so a reused backing array is never visible
// to a caller.
var stringSlicePool = sync.Pool{
	New: func() any {
		s := make([]string, 0, 16)
		return &s
	},
}

// idsFromEdges flattens parentID/childID edges to the child ids in order,
// via a pooled scratch slice.
func idsFromEdges(edges []store.HierarchyEdge) []string {
	bufp := stringSlicePool.Get().(*[]string)
	buf := (*bufp)[:0]
	defer func() {
		*bufp = buf[:0]
		stringSlicePool.Put(bufp)
	}()

	for _, e := range edges {
		buf = append(buf, e.ChildID)
	}

	out := make([]string, len(buf))
	copy(out, buf)
	return out
}
