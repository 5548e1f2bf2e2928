package runbook

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// tagRegex returns a compiled matcher for one block kind. It matches both
// self-closing and container forms: <Kind ... /> or <Kind ...>...</Kind>.
// The attribute pattern steps over quoted values so that > or / characters
// inside them do not terminate the tag early. Handled quoting conventions:
// "...", '...', {`...`}, {"..."}, {'...'}.
func tagRegex(kind Kind) *regexp.Regexp {
	attrs := `(?:"[^"]*"|'[^']*'|\{` + "`[^`]*`" + `\}|\{"[^"]*"\}|\{'[^']*'\}|[^>])*?`
	pattern := fmt.Sprintf(`<%s\s+(%s)(?:/>|>([\s\S]*?)</%s>)`, kind, attrs, kind)
	return regexp.MustCompile(pattern)
}

var (
	tagRegexMu    sync.Mutex
	tagRegexCache = map[Kind]*regexp.Regexp{}
)

func tagRegexFor(kind Kind) *regexp.Regexp {
	tagRegexMu.Lock()
	defer tagRegexMu.Unlock()
	re, ok := tagRegexCache[kind]
	if !ok {
		re = tagRegex(kind)
		tagRegexCache[kind] = re
	}
	return re
}

// tagMatch is one raw occurrence of a block tag in the source.
type tagMatch struct {
	Position int
	Attrs    string
	Body     string
}

// scanTags finds all occurrences of a kind's tag in the content, in source
// order, skipping occurrences inside fenced code regions (documentation
// examples are not real blocks).
func scanTags(content string, kind Kind) []tagMatch {
	re := tagRegexFor(kind)
	idx := re.FindAllStringSubmatchIndex(content, -1)
	fences := fencedRanges(content)

	var out []tagMatch
	for _, m := range idx {
		if len(m) < 4 {
			continue
		}
		if insideFence(m[0], fences) {
			continue
		}
		t := tagMatch{
			Position: m[0],
			Attrs:    content[m[2]:m[3]],
		}
		if len(m) >= 6 && m[4] >= 0 && m[5] >= 0 {
			t.Body = content[m[4]:m[5]]
		}
		out = append(out, t)
	}
	return out
}

// ExtractAttr pulls a single named attribute's value out of a raw attribute
// string, trying the quoting conventions in fixed priority order: double
// quote, single quote, template literal in braces, double quote in braces,
// single quote in braces. Returns "" when the attribute is absent.
func ExtractAttr(attrs, name string) string {
	patterns := []string{
		fmt.Sprintf(`%s="([^"]*)"`, name),
		fmt.Sprintf(`%s='([^']*)'`, name),
		fmt.Sprintf(`%s=\{`+"`([^`]*)`"+`\}`, name),
		fmt.Sprintf(`%s=\{"([^"]*)"\}`, name),
		fmt.Sprintf(`%s=\{'([^']*)'\}`, name),
	}
	for _, p := range patterns {
		re := regexp.MustCompile(p)
		if m := re.FindStringSubmatch(attrs); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// fenceLineRegex matches fence marker lines (``` or ~~~) with optional
// leading whitespace.
var fenceLineRegex = regexp.MustCompile(`(?m)^\s*(?:` + "```" + `|~~~)`)

// fencedRanges finds all fenced code regions as [start, end) byte ranges.
// Fences alternate open/close in markdown, so consecutive marker lines pair.
func fencedRanges(content string) [][2]int {
	marks := fenceLineRegex.FindAllStringIndex(content, -1)

	var ranges [][2]int
	for i := 0; i+1 < len(marks); i += 2 {
		open := marks[i][0]
		closeStart := marks[i+1][0]
		end := len(content)
		if nl := strings.IndexByte(content[closeStart:], '\n'); nl != -1 {
			end = closeStart + nl + 1
		}
		ranges = append(ranges, [2]int{open, end})
	}
	return ranges
}

func insideFence(pos int, ranges [][2]int) bool {
	for _, r := range ranges {
		if pos >= r[0] && pos < r[1] {
			return true
		}
	}
	return false
}

// unescapeAttr reverses the HTML entity escaping document authors need for
// attribute values.
func unescapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&apos;", "'")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}
