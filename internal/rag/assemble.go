package rag

import (
	"fmt"
	"strings"
)

const (
	// MaxPassageChars bounds each passage's contribution to the prompt.
	MaxPassageChars = 1200

	// Ellipsis marks truncated passage content.
	Ellipsis = "..."
)

// Assemble formats passages into a SOURCES block for prompt injection:
// each passage is truncated to MaxPassageChars, prefixed with a 1-based
// citation index and its title, and blocks are joined with a blank line.
//
//	[1] Title
//	content...
//
//	[2] Other title
//	content
//
// The output is deterministic for a given input. An empty input yields an
// empty string; callers must special-case that before prompting.
func Assemble(passages []Passage) string {
	if len(passages) == 0 {
		return ""
	}

	blocks := make([]string, len(passages))
	for i, p := range passages {
		content := truncate(p.Content, MaxPassageChars)
		blocks[i] = fmt.Sprintf("[%d] %s\n%s", i+1, p.Title, content)
	}
	return strings.Join(blocks, "\n\n")
}

// truncate limits s to max characters, appending Ellipsis when content was
// dropped. The limit counts runes, not bytes, so multi-byte content is never
// cut mid-rune. The byte-length check is a fast path: byte length is always
// >= rune count, so short strings skip the rune conversion.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + Ellipsis
}
