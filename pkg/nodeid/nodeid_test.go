package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidDateID(t *testing.T) {
	assert.True(t, IsValidDateID("2025-10-13"))
	assert.False(t, IsValidDateID("2025-13-01"), "invalid month")
	assert.False(t, IsValidDateID("2025-02-30"), "invalid day for February")
	assert.False(t, IsValidDateID("not-a-date"))
	assert.False(t, IsValidDateID(""))
}

func TestIsValidUUID(t *testing.T) {
	id := NewUUID()
	assert.True(t, IsValidUUID(id))
	assert.False(t, IsValidUUID("not-a-uuid"))
	assert.False(t, IsValidUUID(id+"X"))
}

func TestIsReservedRelationshipName(t *testing.T) {
	assert.True(t, IsReservedRelationshipName("has_child"))
	assert.True(t, IsReservedRelationshipName("mentions"))
	assert.True(t, IsReservedRelationshipName("node"))
	assert.True(t, IsReservedRelationshipName("data"))
	assert.False(t, IsReservedRelationshipName("friends_with"))
}

func TestExtractMentions_MarkdownLink(t *testing.T) {
	id := NewUUID()
	content := "see [@B](nodespace://" + id + ")"
	got := ExtractMentions(content)
	assert.Equal(t, []string{id}, got)
}

func TestExtractMentions_BareURI(t *testing.T) {
	id := NewUUID()
	content := "reference nodespace://node/" + id + " in passing"
	got := ExtractMentions(content)
	assert.Equal(t, []string{id}, got)
}

func TestExtractMentions_LinkExcludedFromBareScan(t *testing.T) {
	id := NewUUID()
	content := "[@B](nodespace://" + id + "?foo=bar)"
	got := ExtractMentions(content)
	assert.Equal(t, []string{id}, got, "should count once, not twice")
}

func TestExtractMentions_Deduplicates(t *testing.T) {
	id := NewUUID()
	content := "[@B](nodespace://" + id + ") and also nodespace://" + id
	got := ExtractMentions(content)
	assert.Equal(t, []string{id}, got)
}

func TestExtractMentions_DateID(t *testing.T) {
	content := "see nodespace://2025-10-13"
	got := ExtractMentions(content)
	assert.Equal(t, []string{"2025-10-13"}, got)
}

func TestExtractMentions_RejectsInvalidID(t *testing.T) {
	content := "nodespace://not-a-real-id"
	got := ExtractMentions(content)
	assert.Empty(t, got)
}

func TestExtractMentions_NoSelfReferenceFiltering(t *testing.T) {
	// Extraction itself is agnostic to self-mention; the node service layer
	// enforces the "no self-mention" invariant using the calling node's id.
	id := NewUUID()
	content := "nodespace://" + id
	got := ExtractMentions(content)
	assert.Equal(t, []string{id}, got)
}
