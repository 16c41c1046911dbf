package titleindex

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/coregx/ahocorasick"
	"github.com/nodespace/core/internal/store"
	"github.com/orsinium-labs/stopwords"
)

// Suggestion is one candidate node surfaced for a title match.
type Suggestion struct {
	NodeID   string
	Title    string
	NodeType string
}

// Mention is a Suggestion anchored to the byte span in scanned text where
// its title occurred — the candidate nodespace:// mention link's target
// range.
type Mention struct {
	Suggestion
	Start int
	End   int
}

// Index is the title dictionary: one Aho-Corasick automaton over every
// node's title, serving both "@"-prefix autocomplete (Suggest) and
// whole-document mention scanning (Scan). It is not kept continuously in
// sync with every Upsert/Remove; those only update the underlying cache,
// and Rebuild recompiles the automaton from the cache's current contents.
type Index struct {
	cache *titleCache
	stop  *stopwords.Stopwords

	mu           sync.RWMutex
	ac           *ahocorasick.Automaton
	byPattern    map[string][]Suggestion
	sortedTitles []Suggestion
}

// New returns an empty index. Call LoadFromStore (cold start) or Upsert +
// Rebuild before Scan/Suggest will return anything.
func New() *Index {
	return &Index{
		cache: newTitleCache(),
		stop:  stopwords.MustGet("en"),
	}
}

// LoadFromStore hydrates the cache from every titled node currently in st
// and compiles the automaton, for use once at startup.
func (ix *Index) LoadFromStore(ctx context.Context, st store.Store) error {
	titled, err := st.ListTitledNodes(ctx)
	if err != nil {
		return err
	}
	entries := make([]titledEntry, len(titled))
	for i, t := range titled {
		entries[i] = titledEntry{ID: t.ID, Title: t.Title, NodeType: t.NodeType}
	}
	ix.cache.hydrate(entries)
	return ix.Rebuild()
}

// Upsert records id's current title and node type without recompiling the
// automaton; call Rebuild afterward to make the change visible to
// Scan/Suggest. An empty title removes id.
func (ix *Index) Upsert(id, title, nodeType string) {
	ix.cache.upsert(id, title, nodeType)
}

// Remove drops id from the cache without recompiling the automaton.
func (ix *Index) Remove(id string) {
	ix.cache.remove(id)
}

// Count reports how many titled nodes are currently cached, whether or not
// the automaton has been rebuilt since the last change.
func (ix *Index) Count() int {
	return ix.cache.count()
}

// Rebuild recompiles the Aho-Corasick automaton from the cache's current
// snapshot. Titles that are themselves a single common English word (per
// the stopwords dictionary) are excluded from the pattern set — matching
// every occurrence of "the" or "notes" in a user's document as a mention
// candidate would bury the genuinely useful suggestions.
func (ix *Index) Rebuild() error {
	entries := ix.cache.snapshot()

	byPattern := make(map[string][]Suggestion, len(entries))
	seen := make(map[string]bool, len(entries))
	var patterns []string
	var sortedTitles []Suggestion

	for _, e := range entries {
		key := CanonicalizeForMatch(e.Title)
		if key == "" {
			continue
		}
		if ix.stop != nil && !strings.Contains(key, " ") && ix.stop.Contains(key) {
			continue
		}

		s := Suggestion{NodeID: e.ID, Title: e.Title, NodeType: e.NodeType}
		byPattern[key] = append(byPattern[key], s)
		if !seen[key] {
			seen[key] = true
			patterns = append(patterns, key)
		}
		sortedTitles = append(sortedTitles, s)
	}

	sort.Slice(sortedTitles, func(i, j int) bool {
		return strings.ToLower(sortedTitles[i].Title) < strings.ToLower(sortedTitles[j].Title)
	})

	var automaton *ahocorasick.Automaton
	if len(patterns) > 0 {
		built, err := ahocorasick.NewBuilder().
			AddStrings(patterns).
			SetMatchKind(ahocorasick.LeftmostLongest).
			SetPrefilter(true).
			Build()
		if err != nil {
			return err
		}
		automaton = built
	}

	ix.mu.Lock()
	ix.ac = automaton
	ix.byPattern = byPattern
	ix.sortedTitles = sortedTitles
	ix.mu.Unlock()
	return nil
}

// Scan finds every known-title occurrence in text and maps each back to its
// original byte span, as candidate nodespace:// mention links. Overlapping
// matches (one title a substring of another's surface form) are all
// returned; callers decide how to resolve overlap when inserting links.
func (ix *Index) Scan(text string) []Mention {
	ix.mu.RLock()
	ac := ix.ac
	byPattern := ix.byPattern
	ix.mu.RUnlock()

	if ac == nil {
		return nil
	}

	canonical := CanonicalizeForMatch(text)
	offsets := buildOffsetMap(text)

	matches := ac.FindAllOverlapping([]byte(canonical))
	out := make([]Mention, 0, len(matches))
	for _, m := range matches {
		start := mapOffset(m.Start, offsets, len(text))
		end := mapOffset(m.End, offsets, len(text))
		if start >= len(text) || end > len(text) || start >= end {
			continue
		}
		key := canonical[m.Start:m.End]
		for _, s := range byPattern[key] {
			out = append(out, Mention{Suggestion: s, Start: start, End: end})
		}
	}
	return out
}

// Suggest returns up to limit known titles whose canonicalized form starts
// with prefix, ordered case-insensitively by title, for "@"-triggered
// autocomplete while typing. An empty prefix returns the first limit titles
// in that same order. limit <= 0 means unbounded.
func (ix *Index) Suggest(prefix string, limit int) []Suggestion {
	key := CanonicalizeForMatch(prefix)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []Suggestion
	for _, s := range ix.sortedTitles {
		if key == "" || strings.HasPrefix(CanonicalizeForMatch(s.Title), key) {
			out = append(out, s)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}
