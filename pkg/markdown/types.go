package markdown

import "github.com/nodespace/core/internal/store"

// maxContentBytes bounds the size of an import payload (§4.11.1).
const maxContentBytes = 1 << 20 // 1 MB

// ContentTooLargeError is returned when an import's markdown_content
// exceeds maxContentBytes.
type ContentTooLargeError struct {
	Size int
}

func (e *ContentTooLargeError) Error() string {
	return "markdown: content too large"
}

// Block is one parsed unit of the block-level event stream blockstream.go
// produces: a heading, paragraph, fenced code block, blockquote, task line,
// or bullet list item, in document order.
type Block struct {
	Kind string // one of the store.NodeType* constants below

	// Content is the node content this block maps to (§4.11.1's mapping
	// table): verbatim for paragraphs, fence-and-all for code blocks,
	// '>'-prefixed for quotes, '#'-prefixed for headings. For tasks and
	// bullet list items the checkbox/"- " marker has already been
	// stripped — the importer re-adds "- " only where the mapping table
	// calls for it.
	Content string

	Level int // heading level 1-6; 0 for non-headings

	IsListItem bool
	Indent     int // leading whitespace count, list items only

	Status string // "open" or "done", task blocks only
}

const (
	blockHeader    = store.NodeTypeHeader
	blockText      = store.NodeTypeText
	blockCodeBlock = store.NodeTypeCodeBlock
	blockQuote     = store.NodeTypeQuoteBlock
	blockTask      = store.NodeTypeTask
)
