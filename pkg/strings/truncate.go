package strings

import (
	"strings"
)

// DefaultCommandMaxLen is the column width used when rendering block
// commands in console tables.
const DefaultCommandMaxLen = 48

// MinTruncateLen is the smallest usable maxLen for TruncateOneLine; anything
// shorter has no room for content plus the "..." marker.
const MinTruncateLen = 4

// TruncateOneLine collapses s onto a single line and truncates it to maxLen
// runes, appending "..." when content was cut. Whitespace runs, including
// newlines, become single spaces. maxLen values below MinTruncateLen are
// clamped.
func TruncateOneLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	// Rune-based slicing so multi-byte characters are never split.
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
