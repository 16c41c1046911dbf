// Package nodeid provides id generation and validation for the node graph:
// UUID v4 ids, YYYY-MM-DD date ids, mention-link extraction, and reserved
// identifier checks shared across the schema, collection, and relation
// components.
package nodeid

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// NewUUID returns a canonical lower-case UUID v4 string.
func NewUUID() string {
	return uuid.New().String()
}

// IsValidUUID reports whether s is a canonical lower-case UUID.
func IsValidUUID(s string) bool {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return parsed.String() == s
}

var dateIDPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsValidDateID reports whether s is a YYYY-MM-DD id that round-trips to
// the same string (rejects e.g. "2025-02-30").
func IsValidDateID(s string) bool {
	if !dateIDPattern.MatchString(s) {
		return false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return false
	}
	return t.Format("2006-01-02") == s
}

// IsValidSchemaID reports whether s is usable as a schema node id (and
// therefore a node_type name): identifier characters only.
var schemaIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func IsValidSchemaID(s string) bool {
	return s != "" && schemaIDPattern.MatchString(s)
}

// reservedRelationshipNames are edge-table / relationship names that would
// collide with built-in edge kinds or hub-spoke link fields.
var reservedRelationshipNames = map[string]bool{
	"has_child": true,
	"mentions":  true,
	"node":      true,
	"data":      true,
}

// IsReservedRelationshipName reports whether name collides with a built-in
// relationship or field name.
func IsReservedRelationshipName(name string) bool {
	return reservedRelationshipNames[name]
}

// mentionLinkPattern matches Markdown links pointing at a nodespace:// URI:
// [label](nodespace://[node/]?<id>[?query]).
var mentionLinkPattern = regexp.MustCompile(`\[[^\]]*\]\(nodespace://(?:node/)?([^)?\s]+)(?:\?[^)]*)?\)`)

// bareMentionPattern matches a bare nodespace:// URI not wrapped in a
// Markdown link: nodespace://[node/]?<id>.
var bareMentionPattern = regexp.MustCompile(`nodespace://(?:node/)?([A-Za-z0-9-]+)`)

// ExtractMentions scans content for nodespace:// references and returns the
// deduplicated set of referenced node ids. Matches inside Markdown links are
// excluded from the bare-URI scan so each occurrence counts once.
func ExtractMentions(content string) []string {
	seen := make(map[string]bool)
	var out []string

	linkMatches := mentionLinkPattern.FindAllStringSubmatchIndex(content, -1)
	covered := make([]bool, len(content)+1)
	for _, m := range linkMatches {
		id := content[m[2]:m[3]]
		for i := m[0]; i < m[1] && i < len(covered); i++ {
			covered[i] = true
		}
		if isReferenceable(id) && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, m := range bareMentionPattern.FindAllStringSubmatchIndex(content, -1) {
		if covered[m[0]] {
			continue
		}
		id := content[m[2]:m[3]]
		if isReferenceable(id) && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	return out
}

// isReferenceable reports whether id is a valid mention target: a UUID or a
// date id that round-trips.
func isReferenceable(id string) bool {
	return IsValidUUID(id) || IsValidDateID(id)
}
