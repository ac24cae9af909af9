// Package fence extracts fenced code blocks from conversation text.
package fence

import "strings"

// Block is one fenced region of a turn's text.
//
// Closed reports whether the closing fence was actually seen. An unterminated
// trailing fence still yields a block with everything collected so far;
// callers that execute blocks must only act on complete text.
type Block struct {
	Tag    string
	Body   string
	Closed bool
}

const minFence = 3

// Extract returns every fenced block in text, in order. The opening fence's
// leading whitespace establishes the block's base indentation: each inner
// line has that indentation stripped when present and is kept verbatim
// otherwise, so under-indented content never fails. A fence only closes on a
// line at the base indentation carrying an equal-or-longer run of backticks
// and nothing else; a shorter run inside the block is content, not a closer.
func Extract(text string) []Block {
	lines := strings.Split(text, "\n")

	var blocks []Block
	for i := 0; i < len(lines); i++ {
		indent, rest := splitIndent(lines[i])
		n := fenceLen(rest)
		if n < minFence {
			continue
		}
		open := Block{Tag: strings.TrimSpace(rest[n:])}

		var body []string
		j := i + 1
		for ; j < len(lines); j++ {
			closeIndent, closeRest := splitIndent(lines[j])
			m := fenceLen(closeRest)
			if m >= n && closeIndent == indent && strings.TrimSpace(closeRest[m:]) == "" {
				open.Closed = true
				break
			}
			body = append(body, strings.TrimPrefix(lines[j], indent))
		}
		open.Body = strings.Join(body, "\n")
		blocks = append(blocks, open)
		i = j
	}
	return blocks
}

// Last returns the final block of text, the only one consulted for
// execution, or false if text contains no fence.
func Last(text string) (Block, bool) {
	blocks := Extract(text)
	if len(blocks) == 0 {
		return Block{}, false
	}
	return blocks[len(blocks)-1], true
}

func splitIndent(line string) (indent, rest string) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[:i], line[i:]
}

func fenceLen(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}
