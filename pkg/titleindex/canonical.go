// Package titleindex implements the title-autocomplete and mention-scan
// dictionary (SPEC_FULL.md's supplement over spec.md's "title" field): a
// single Aho-Corasick automaton built over every node's title, used both to
// answer "@"-prefix autocomplete queries and to scan freshly-imported or
// pasted text for spans that match a known title, surfacing them as
// candidate nodespace:// mention links.
package titleindex

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isJoiner reports whether r is punctuation that commonly appears inside a
// title rather than between words ("Node.js", "Bob's Notes", "Q&A").
func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘',
		'-', '–', '—',
		'·', '.', '_', '/', '#', '&':
		return true
	default:
		return false
	}
}

func isSeparator(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || isJoiner(r) {
		return false
	}
	return true
}

// CanonicalizeForMatch normalizes s into the form the automaton is built
// and queried against: lowercased, curly quotes and en/em dashes folded to
// their plain equivalents, every run of non-letter/digit/joiner characters
// collapsed to a single space, leading/trailing space trimmed. Titles and
// scanned document text both pass through this exact function so a title
// containing "Jean-Luc" or "O'Brien" still matches regardless of how a
// document typed the punctuation.
func CanonicalizeForMatch(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	lastWasSpace := true
	for _, ch := range s {
		c := foldPunctuation(unicode.ToLower(ch))
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}

	result := out.String()
	if len(result) > 0 && result[len(result)-1] == ' ' {
		result = result[:len(result)-1]
	}
	return result
}

func foldPunctuation(c rune) rune {
	switch c {
	case '’', '‘':
		return '\''
	case '–', '—':
		return '-'
	default:
		return c
	}
}

// buildOffsetMap returns, for every byte position in CanonicalizeForMatch's
// output, the corresponding byte position in original — so a match found in
// canonicalized text can be reported at the span the caller actually typed.
func buildOffsetMap(original string) []int {
	mapping := make([]int, 0, len(original)+1)
	lastWasSpace := true
	origPos := 0

	for _, ch := range original {
		runeLen := utf8.RuneLen(ch)
		c := foldPunctuation(unicode.ToLower(ch))

		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			canonLen := utf8.RuneLen(c)
			for i := 0; i < canonLen; i++ {
				mapping = append(mapping, origPos)
			}
			lastWasSpace = false
		} else if !lastWasSpace {
			mapping = append(mapping, origPos)
			lastWasSpace = true
		}
		origPos += runeLen
	}

	mapping = append(mapping, origPos)
	return mapping
}

func mapOffset(canonOffset int, mapping []int, originalLen int) int {
	if canonOffset >= len(mapping) {
		return originalLen
	}
	if canonOffset < 0 {
		return 0
	}
	return mapping[canonOffset]
}
