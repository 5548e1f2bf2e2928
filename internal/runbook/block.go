// Package runbook discovers executable blocks inside runbook documents.
//
// A runbook is a structured markdown document (MDX-style) that mixes prose
// with embedded block tags such as <Check .../> or <Command ...>...</Command>.
// Discovery scans the raw text, assigns every block a stable identity, records
// document order, reads variable schemas, and extracts the output references
// each block makes to other blocks. The package never executes anything; it
// produces the structural model the test scheduler operates on.
package runbook

import "strings"

// Kind identifies the type of an embedded block.
type Kind string

const (
	KindCheck          Kind = "Check"
	KindCommand        Kind = "Command"
	KindTemplate       Kind = "Template"
	KindTemplateInline Kind = "TemplateInline"
	KindInputs         Kind = "Inputs"
	KindAwsAuth        Kind = "AwsAuth"
	KindGitHubAuth     Kind = "GitHubAuth"
)

// Kinds lists every recognized block kind in the order discovery scans them.
var Kinds = []Kind{
	KindInputs,
	KindCheck,
	KindCommand,
	KindTemplate,
	KindTemplateInline,
	KindAwsAuth,
	KindGitHubAuth,
}

// executableKinds are the kinds the scheduler can run as test steps.
var executableKinds = map[Kind]bool{
	KindCheck:          true,
	KindCommand:        true,
	KindTemplate:       true,
	KindTemplateInline: true,
	KindAwsAuth:        true,
	KindGitHubAuth:     true,
}

// Block is one discovered unit inside a runbook document. Blocks are
// immutable once discovered; a re-parse produces a fresh set.
type Block struct {
	// ID is unique within the document after normalization (hyphens and
	// underscores collide). Either declared via the id attribute or
	// synthesized.
	ID string

	Kind Kind

	// Position is the byte offset of the opening tag in the source text.
	// Used only for ordering, never persisted.
	Position int

	// ExplicitID reports whether the id attribute was present in the source.
	ExplicitID bool

	// Body is the raw text between the opening and closing tags. Empty for
	// self-closing blocks.
	Body string

	// Attrs is the raw attribute string of the opening tag.
	Attrs string

	// Command is the inline script of Check/Command blocks, with HTML
	// entities unescaped. ScriptPath is set instead when the block loads its
	// script from a file (relative to the runbook directory).
	Command    string
	ScriptPath string

	// TemplatePath is the path attribute of Template blocks (and the schema
	// reference of Inputs blocks when external).
	TemplatePath string

	// OutputPath and InputsRef carry TemplateInline attributes.
	OutputPath string
	InputsRef  string

	// Variables holds the declared input schema, in declaration order.
	// Nil when the block carries no schema or its schema file was unreadable.
	Variables []Variable

	// OutputDeps lists the (block, output) pairs this block's body references.
	OutputDeps []OutputDep
}

// Executable reports whether the block can be run as a test step.
func (b Block) Executable() bool {
	return executableKinds[b.Kind]
}

// Variable is a declared input of a Template, TemplateInline, or Inputs block.
type Variable struct {
	Name        string
	Type        string
	Description string
	Default     interface{}
	Options     []string

	// Schema names the sub-fields of a structured map variable.
	Schema map[string]string

	// Validations is the raw constraint list; ParseConstraints folds it.
	Validations Validations
}

// Constraints are the parsed form of a variable's validations.
type Constraints struct {
	Required  bool
	MinLength int
	MaxLength int
	Min       int
	Max       int
	Pattern   string
	Email     bool
	URL       bool
}

// OutputDep is a reference from one block's body to a named output of another.
type OutputDep struct {
	BlockID    string
	OutputName string
}

// Collision records a block whose normalized id matched an earlier block's.
// The earlier block stays in the document; the colliding one is dropped.
type Collision struct {
	ID        string
	FirstKind Kind
	DupKind   Kind
	Position  int
}

// Document is the result of discovery over one runbook's source text.
type Document struct {
	Blocks     []Block
	Collisions []Collision

	// Warnings carries non-fatal findings, such as unrecognized block tags.
	Warnings []string
}

// Block returns the block with the given id, matching after normalization.
func (d *Document) Block(id string) (Block, bool) {
	want := NormalizeID(id)
	for _, b := range d.Blocks {
		if NormalizeID(b.ID) == want {
			return b, true
		}
	}
	return Block{}, false
}

// ExecutableBlocks returns the document's runnable blocks in document order.
func (d *Document) ExecutableBlocks() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Executable() {
			out = append(out, b)
		}
	}
	return out
}

// NormalizeID folds an id to its template-variable compatible form. Template
// expressions cannot contain hyphens, so "my-check" and "my_check" address
// the same block.
func NormalizeID(id string) string {
	return strings.ReplaceAll(id, "-", "_")
}
