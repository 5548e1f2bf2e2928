package runbook

import "regexp"

// outputRefRegex matches template expressions that read another block's
// output: {{ ._blocks.<id>.outputs.<name> }}. The leading dot is optional
// (loop variables drop it) and the expression may open with a range over a
// block's outputs, so the optional range clause is stepped over before the
// accessor itself.
var outputRefRegex = regexp.MustCompile(
	`\{\{\s*-?\s*(?:range\s+[^}]*)?\.?_blocks\.([a-zA-Z0-9_-]+)\.outputs\.(\w+)`)

// ExtractOutputDeps scans a block body for references to other blocks'
// named outputs. It is a pure function of the text: duplicates collapse to
// one entry and the order of first appearance is preserved.
func ExtractOutputDeps(body string) []OutputDep {
	matches := outputRefRegex.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	var deps []OutputDep
	seen := make(map[OutputDep]bool)
	for _, m := range matches {
		dep := OutputDep{BlockID: m[1], OutputName: m[2]}
		if seen[dep] {
			continue
		}
		seen[dep] = true
		deps = append(deps, dep)
	}
	return deps
}
