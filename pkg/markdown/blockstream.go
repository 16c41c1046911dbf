package markdown

import (
	"regexp"
	"strings"
)

var (
	headingPattern = regexp.MustCompile(`^(#{1,6})[ \t]`)
	taskPattern    = regexp.MustCompile(`^-[ \t]\[([ xX])\][ \t](.*)$`)
)

// Scan turns raw markdown content into a flat, document-order stream of
// Blocks. It is a minimal line-oriented scanner in the style of this
// repo's other line-based text scanning (stripCodeFence-style fence
// detection, regex-matched line prefixes) rather than a full CommonMark
// parser — it covers exactly the block types §4.11.1 maps to node types.
func Scan(content string) []Block {
	lines := strings.Split(content, "\n")
	var blocks []Block

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimLeft(line, " \t")
		indent := len(line) - len(trimmed)

		switch {
		case trimmed == "":
			i++

		case headingPattern.MatchString(trimmed):
			level := strings.IndexByte(trimmed, ' ')
			if tab := strings.IndexByte(trimmed, '\t'); tab >= 0 && (level < 0 || tab < level) {
				level = tab
			}
			blocks = append(blocks, Block{Kind: blockHeader, Content: trimmed, Level: level})
			i++

		case strings.HasPrefix(trimmed, "```"):
			fence := trimmed
			j := i + 1
			for j < len(lines) && strings.TrimSpace(lines[j]) != "```" {
				j++
			}
			end := j
			if end < len(lines) {
				end++ // include the closing fence line
			}
			body := append([]string{fence}, lines[i+1:end]...)
			blocks = append(blocks, Block{Kind: blockCodeBlock, Content: strings.Join(body, "\n")})
			i = end

		case strings.HasPrefix(trimmed, ">"):
			j := i
			var quoted []string
			for j < len(lines) {
				t := strings.TrimLeft(lines[j], " \t")
				if !strings.HasPrefix(t, ">") {
					break
				}
				quoted = append(quoted, t)
				j++
			}
			blocks = append(blocks, Block{Kind: blockQuote, Content: strings.Join(quoted, "\n")})
			i = j

		case taskPattern.MatchString(trimmed):
			m := taskPattern.FindStringSubmatch(trimmed)
			status := "open"
			if strings.EqualFold(m[1], "x") {
				status = "done"
			}
			blocks = append(blocks, Block{Kind: blockTask, Content: m[2], Status: status})
			i++

		case strings.HasPrefix(trimmed, "- "):
			blocks = append(blocks, Block{
				Kind:       blockText,
				Content:    strings.TrimPrefix(trimmed, "- "),
				IsListItem: true,
				Indent:     indent,
			})
			i++

		default:
			j := i
			var para []string
			for j < len(lines) {
				t := strings.TrimLeft(lines[j], " \t")
				if t == "" || headingPattern.MatchString(t) || strings.HasPrefix(t, "```") ||
					strings.HasPrefix(t, ">") || strings.HasPrefix(t, "- ") || taskPattern.MatchString(t) {
					break
				}
				para = append(para, lines[j])
				j++
			}
			blocks = append(blocks, Block{Kind: blockText, Content: strings.Join(para, "\n")})
			i = j
		}
	}

	return blocks
}
