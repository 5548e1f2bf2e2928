package runbook

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// EntryFile is the fixed name of a runbook's primary document.
const EntryFile = "runbook.mdx"

// SchemaReader loads the variable schema referenced by Template and Inputs
// blocks. Implementations resolve paths against the runbook directory.
type SchemaReader interface {
	ReadSchema(path string) ([]Variable, error)
}

// Option configures a discovery pass.
type Option func(*discoverer)

// WithBaseDir sets the directory external schema paths resolve against.
// Defaults to the process working directory.
func WithBaseDir(dir string) Option {
	return func(d *discoverer) { d.baseDir = dir }
}

// WithSchemaReader replaces the default file-based schema reader.
func WithSchemaReader(r SchemaReader) Option {
	return func(d *discoverer) { d.schemas = r }
}

type discoverer struct {
	baseDir string
	schemas SchemaReader
}

// DiscoverFile reads a runbook document from disk and discovers its blocks.
// Schema paths resolve against the document's directory.
func DiscoverFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read runbook: %w", err)
	}
	return Discover(string(content), WithBaseDir(filepath.Dir(path)))
}

// Discover scans raw document text and returns the ordered block model.
//
// Blocks of every recognized kind are matched in all three tag forms
// (self-closing, empty container, filled container), de-duplicated by
// normalized id with the first document occurrence winning, and sorted by
// byte offset so nested blocks interleave with their parents in true
// document order. Normalized-id collisions are reported in the returned
// Document rather than silently dropped.
//
// The only fatal condition is a malformed inline schema in an Inputs block:
// the author's declared intent cannot be honored silently, so the error names
// the offending block id. Unreadable external schema files are non-fatal and
// leave the block with nil Variables.
func Discover(content string, opts ...Option) (*Document, error) {
	d := &discoverer{baseDir: "."}
	for _, opt := range opts {
		opt(d)
	}
	if d.schemas == nil {
		d.schemas = fileSchemaReader{baseDir: d.baseDir}
	}

	doc := &Document{}
	seen := make(map[string]Kind) // normalized id -> kind of first occurrence

	add := func(b Block) {
		norm := NormalizeID(b.ID)
		if first, dup := seen[norm]; dup {
			doc.Collisions = append(doc.Collisions, Collision{
				ID:        b.ID,
				FirstKind: first,
				DupKind:   b.Kind,
				Position:  b.Position,
			})
			return
		}
		seen[norm] = b.Kind
		doc.Blocks = append(doc.Blocks, b)
	}

	doc.Warnings = unknownTagWarnings(content)

	for _, kind := range Kinds {
		blocks, err := d.discoverKind(content, kind)
		if err != nil {
			return nil, err
		}
		for _, b := range blocks {
			add(b)
		}
	}

	sort.SliceStable(doc.Blocks, func(i, j int) bool {
		return doc.Blocks[i].Position < doc.Blocks[j].Position
	})
	return doc, nil
}

// discoverKind runs one kind's scan pass. Within a pass, duplicate ids keep
// the first occurrence; cross-kind duplicates are handled by the caller as
// blocks join the shared result.
func (d *discoverer) discoverKind(content string, kind Kind) ([]Block, error) {
	tags := scanTags(content, kind)
	if kind == KindTemplateInline {
		return d.inlineTemplateBlocks(tags), nil
	}

	var blocks []Block
	seen := make(map[string]bool)
	for _, t := range tags {
		b := Block{
			Kind:     kind,
			Position: t.Position,
			Attrs:    t.Attrs,
			Body:     t.Body,
		}
		if id := ExtractAttr(t.Attrs, "id"); id != "" {
			b.ID = id
			b.ExplicitID = true
		} else {
			b.ID = deriveID(kind, t.Attrs)
		}
		if seen[b.ID] {
			continue
		}
		seen[b.ID] = true

		switch kind {
		case KindCheck, KindCommand:
			if cmd := ExtractAttr(t.Attrs, "command"); cmd != "" {
				b.Command = unescapeAttr(cmd)
			} else if path := ExtractAttr(t.Attrs, "path"); path != "" {
				b.ScriptPath = path
			}
		case KindTemplate:
			b.TemplatePath = ExtractAttr(t.Attrs, "path")
			b.OutputPath = ExtractAttr(t.Attrs, "outputPath")
			if b.TemplatePath != "" {
				// Schema failures are non-fatal: the block stays usable, it
				// just carries no declared variables.
				if vars, err := d.schemas.ReadSchema(b.TemplatePath); err == nil {
					b.Variables = vars
				}
			}
		case KindInputs:
			vars, err := d.inputsVariables(b.ID, t)
			if err != nil {
				return nil, err
			}
			b.Variables = vars
		}

		// The command attribute can reference outputs too, not just the body.
		b.OutputDeps = ExtractOutputDeps(b.Command + "\n" + b.Body)
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// inputsVariables loads an Inputs block's schema from its path attribute or
// its inline fenced YAML body.
func (d *discoverer) inputsVariables(id string, t tagMatch) ([]Variable, error) {
	if path := ExtractAttr(t.Attrs, "path"); path != "" {
		vars, err := d.schemas.ReadSchema(path)
		if err != nil {
			return nil, nil // unreadable external schema is non-fatal
		}
		return vars, nil
	}
	body := strings.TrimSpace(t.Body)
	if body == "" {
		return nil, nil
	}
	vars, err := parseInlineSchema(body)
	if err != nil {
		return nil, fmt.Errorf("inputs block %q: invalid inline schema: %w", id, err)
	}
	return vars, nil
}

// inlineTemplateBlocks handles TemplateInline, the one kind with no id
// attribute. The id comes from the output path; the fallback counter is a
// local accumulator that counts only blocks whose output path was empty or
// whose synthesized id collided, so ids stay stable as documents grow.
func (d *discoverer) inlineTemplateBlocks(tags []tagMatch) []Block {
	var blocks []Block
	seen := make(map[string]bool)
	fallback := 0
	for _, t := range tags {
		outputPath := ExtractAttr(t.Attrs, "outputPath")
		id := inlineTemplateID(outputPath)
		if id == "" || seen[id] {
			fallback++
			id = fmt.Sprintf("template-inline-%d", fallback)
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		blocks = append(blocks, Block{
			ID:         id,
			Kind:       KindTemplateInline,
			Position:   t.Position,
			Attrs:      t.Attrs,
			Body:       t.Body,
			OutputPath: outputPath,
			InputsRef:  ExtractAttr(t.Attrs, "inputsRef"),
			OutputDeps: ExtractOutputDeps(t.Body),
		})
	}
	return blocks
}

// inlineTemplateID synthesizes a TemplateInline id from its output path:
// "template-{basename}-{hash}", where the 8-character hash of the full path
// disambiguates equal filenames in different directories. Empty path yields
// "" and the caller falls back to a counter.
func inlineTemplateID(outputPath string) string {
	if outputPath == "" {
		return ""
	}
	base := filepath.Base(outputPath)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	sum := sha256.Sum256([]byte(outputPath))
	return fmt.Sprintf("template-%s-%s", base, hex.EncodeToString(sum[:])[:8])
}

// deriveID produces a deterministic id for a block without an explicit id
// attribute, hashing the kind and raw attributes.
func deriveID(kind Kind, attrs string) string {
	sum := sha256.Sum256([]byte(string(kind) + attrs))
	return string(kind) + "_" + hex.EncodeToString(sum[:])[:8]
}

var knownKinds = func() map[string]bool {
	m := make(map[string]bool, len(Kinds)+1)
	for _, k := range Kinds {
		m[string(k)] = true
	}
	// Decorative block: recognized but carries nothing to discover.
	m["Admonition"] = true
	return m
}()

// blockLikeRegex finds PascalCase tags, the MDX convention for custom blocks
// (lowercase tags are plain HTML).
var blockLikeRegex = regexp.MustCompile(`<([A-Z][a-zA-Z0-9]*)(?:\s|/>|>)`)

// unknownTagWarnings reports PascalCase tags outside fenced regions that are
// not recognized block kinds. Typos like <Comand> would otherwise be
// silently skipped.
func unknownTagWarnings(content string) []string {
	fences := fencedRanges(content)
	matches := blockLikeRegex.FindAllStringSubmatchIndex(content, -1)

	var warnings []string
	seen := make(map[string]bool)
	for _, m := range matches {
		if insideFence(m[0], fences) {
			continue
		}
		name := content[m[2]:m[3]]
		if seen[name] || knownKinds[name] {
			continue
		}
		seen[name] = true
		warnings = append(warnings, fmt.Sprintf("unknown block type %q is not supported", name))
	}
	return warnings
}
