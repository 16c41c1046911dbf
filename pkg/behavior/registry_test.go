package behavior

import (
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestGenericAllowsEmptyContent(t *testing.T) {
	r := NewRegistry()
	n := &store.Node{NodeType: "text", Content: ""}
	assert.NoError(t, r.Validate(n))
}

func TestUnknownTypeFallsBackToGeneric(t *testing.T) {
	r := NewRegistry()
	n := &store.Node{NodeType: "custom-user-type", Properties: []byte(`{"a":1}`)}
	assert.NoError(t, r.Validate(n))
}

func TestGenericRejectsNonObjectProperties(t *testing.T) {
	r := NewRegistry()
	n := &store.Node{NodeType: "text", Properties: []byte(`[1,2,3]`)}
	assert.Error(t, r.Validate(n))
}

func TestCodeBlockAllowsFencedContent(t *testing.T) {
	r := NewRegistry()
	n := &store.Node{NodeType: store.NodeTypeCodeBlock, Content: "```go\nfmt.Println()\n```"}
	assert.NoError(t, r.Validate(n))
}

func TestCodeBlockRejectsUnfencedContent(t *testing.T) {
	r := NewRegistry()
	n := &store.Node{NodeType: store.NodeTypeCodeBlock, Content: "fmt.Println()"}
	assert.Error(t, r.Validate(n))
}

func TestQuoteBlockAllowsPrefixedContent(t *testing.T) {
	r := NewRegistry()
	n := &store.Node{NodeType: store.NodeTypeQuoteBlock, Content: "> already quoted"}
	assert.NoError(t, r.Validate(n))
}

func TestTaskStatusValidation(t *testing.T) {
	r := NewRegistry()
	ok := &store.Node{NodeType: store.NodeTypeTask, Properties: []byte(`{"status":"done"}`)}
	assert.NoError(t, r.Validate(ok))

	bad := &store.Node{NodeType: store.NodeTypeTask, Properties: []byte(`{"status":"blocked"}`)}
	assert.Error(t, r.Validate(bad))

	noStatus := &store.Node{NodeType: store.NodeTypeTask, Properties: []byte(`{}`)}
	assert.NoError(t, r.Validate(noStatus))
}
