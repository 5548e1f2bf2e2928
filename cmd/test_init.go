package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"runvet/internal/runbook"
	"runvet/internal/runtest"
)

// testInitCmd represents the test init command
var testInitCmd = &cobra.Command{
	Use:   "init <runbook-path>",
	Short: "Initialize a test configuration for a runbook",
	Long: `Generate a runbook_test.yml file for a runbook based on its structure.

The runbook's Check, Command, Template, TemplateInline, Inputs, AwsAuth, and
GitHubAuth blocks are discovered and a test configuration with reasonable
defaults is written next to it. Declared input variables get fuzz policies
derived from their types and validations.`,
	Args: cobra.ExactArgs(1),
	RunE: runTestInit,
}

func init() {
	testCmd.AddCommand(testInitCmd)
}

func runTestInit(cmd *cobra.Command, args []string) error {
	runbookPath := args[0]

	info, err := os.Stat(runbookPath)
	if err != nil {
		return fmt.Errorf("path not found: %s", runbookPath)
	}
	if info.IsDir() {
		runbookPath = filepath.Join(runbookPath, runbook.EntryFile)
	}
	if _, err := os.Stat(runbookPath); err != nil {
		return fmt.Errorf("runbook not found: %s", runbookPath)
	}

	dir := filepath.Dir(runbookPath)
	configPath := filepath.Join(dir, runtest.ConfigFile)
	_, existsErr := os.Stat(configPath)
	fileExists := existsErr == nil

	doc, err := runbook.DiscoverFile(runbookPath)
	if err != nil {
		return fmt.Errorf("failed to parse runbook: %w", err)
	}
	if len(doc.Blocks) == 0 {
		return fmt.Errorf("no blocks found in %s", runbookPath)
	}

	scaffold := generateTestConfig(filepath.Base(dir), doc)
	if err := os.WriteFile(configPath, []byte(scaffold), 0644); err != nil {
		return fmt.Errorf("failed to write test config: %w", err)
	}

	out := cmd.OutOrStdout()
	if fileExists {
		fmt.Fprintf(out, "Overwrote %s\n", configPath)
	} else {
		fmt.Fprintf(out, "Created %s\n", configPath)
	}
	names := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		names = append(names, b.ID)
	}
	fmt.Fprintf(out, "Found %d blocks: %s\n", len(doc.Blocks), strings.Join(names, ", "))
	fmt.Fprintln(out, "\nEdit the file to configure inputs and assertions for your tests.")
	return nil
}

// generateTestConfig renders the scaffold. Steps are emitted commented out
// so the generated test runs every block in document order until the author
// narrows it down.
func generateTestConfig(runbookName string, doc *runbook.Document) string {
	var sb strings.Builder

	sb.WriteString("# Test configuration for ")
	sb.WriteString(runbookName)
	sb.WriteString("\n# Generated by: runvet test init\n")
	sb.WriteString("# Edit this file to customize your tests.\n\n")

	sb.WriteString("version: 1\n\n")

	sb.WriteString("settings:\n")
	sb.WriteString("  # Generate files to a temp directory (cleaned up after test)\n")
	sb.WriteString("  use_temp_working_dir: true\n")
	sb.WriteString("  # working_dir: \".\"  # Use \".\" for runbook directory, or specify a path\n")
	sb.WriteString("  timeout: 5m\n")
	sb.WriteString("  # Can this runbook's tests run in parallel with others?\n")
	sb.WriteString("  parallelizable: true\n\n")

	sb.WriteString("tests:\n")
	sb.WriteString("  - name: happy-path\n")
	sb.WriteString("    description: Standard successful execution\n\n")

	writeInputsSection(&sb, doc)
	writeStepsSection(&sb, doc)
	writeAssertionsSection(&sb, doc)

	sb.WriteString("    # cleanup:\n")
	sb.WriteString("    #   - command: rm -rf /tmp/test-resources\n")
	sb.WriteString("    #   - path: cleanup/teardown.sh\n")

	return sb.String()
}

func writeInputsSection(sb *strings.Builder, doc *runbook.Document) {
	hasVars := false
	for _, b := range doc.Blocks {
		if len(b.Variables) > 0 {
			hasVars = true
			break
		}
	}
	if !hasVars {
		return
	}

	sb.WriteString("    inputs:\n")
	for _, b := range doc.Blocks {
		for _, v := range b.Variables {
			sb.WriteString(fmt.Sprintf("      # %s: %s", v.Name, orString(v.Type, "string")))
			if len(v.Options) > 0 {
				sb.WriteString(fmt.Sprintf(" [%s]", strings.Join(v.Options, ", ")))
			}
			if v.ParseConstraints().Required {
				sb.WriteString(", required")
			}
			sb.WriteString("\n")
			sb.WriteString(fmt.Sprintf("      %s.%s:\n", b.ID, v.Name))
			writeFuzzPolicy(sb, runtest.PolicyFor(v), "        ")
		}
	}
	sb.WriteString("\n")
}

// writeFuzzPolicy renders a fuzz policy as indented YAML.
func writeFuzzPolicy(sb *strings.Builder, spec *runtest.FuzzSpec, indent string) {
	line := func(format string, args ...interface{}) {
		sb.WriteString(indent)
		sb.WriteString(fmt.Sprintf(format, args...))
		sb.WriteString("\n")
	}

	line("fuzz:")
	line("  type: %s", spec.Type)

	switch spec.Type {
	case runtest.FuzzEnum:
		quoted := make([]string, len(spec.Options))
		for i, opt := range spec.Options {
			quoted[i] = fmt.Sprintf("%q", opt)
		}
		line("  options: [%s]", strings.Join(quoted, ", "))
	case runtest.FuzzString:
		line("  minLength: %d", spec.MinLength)
		line("  maxLength: %d", spec.MaxLength)
	case runtest.FuzzInt, runtest.FuzzFloat:
		line("  min: %d", spec.Min)
		line("  max: %d", spec.Max)
	case runtest.FuzzList:
		line("  minCount: %d", spec.MinCount)
		line("  maxCount: %d", spec.MaxCount)
	case runtest.FuzzMap:
		line("  minCount: %d", spec.MinCount)
		line("  maxCount: %d", spec.MaxCount)
		if len(spec.Schema) > 0 {
			line("  schema:")
			for _, field := range spec.Schema {
				line("    - %s", field)
			}
		}
	}
}

func writeStepsSection(sb *strings.Builder, doc *runbook.Document) {
	sb.WriteString("    steps:\n")
	sb.WriteString("      # Note: Order matters! Blocks that produce outputs must run before\n")
	sb.WriteString("      # blocks that consume them via {{ ._blocks.x.outputs.y }}\n")
	sb.WriteString("      # All blocks below are commented out, so this test runs all blocks\n")
	sb.WriteString("      # in document order. Uncomment specific blocks to run only those.\n\n")

	for _, b := range doc.ExecutableBlocks() {
		sb.WriteString(fmt.Sprintf("      # - block: %s\n", b.ID))
		switch b.Kind {
		case runbook.KindTemplate:
			if b.TemplatePath != "" {
				sb.WriteString(fmt.Sprintf("      #   # Template: %s\n", b.TemplatePath))
			}
			sb.WriteString("      #   expect: success\n\n")
		case runbook.KindTemplateInline:
			if b.OutputPath != "" {
				sb.WriteString(fmt.Sprintf("      #   # Renders: %s\n", b.OutputPath))
			}
			if len(b.OutputDeps) > 0 {
				deps := make([]string, 0, len(b.OutputDeps))
				for _, dep := range b.OutputDeps {
					deps = append(deps, fmt.Sprintf("%s.%s", dep.BlockID, dep.OutputName))
				}
				sb.WriteString(fmt.Sprintf("      #   # Depends on: %s\n", strings.Join(deps, ", ")))
			}
			sb.WriteString("      #   expect: success\n\n")
		case runbook.KindAwsAuth:
			sb.WriteString("      #   # Set expect: skip if not testing AWS auth\n")
			sb.WriteString("      #   expect: skip\n\n")
		case runbook.KindGitHubAuth:
			sb.WriteString("      #   # Set expect: skip if not testing GitHub auth\n")
			sb.WriteString("      #   expect: skip\n\n")
		default:
			sb.WriteString("      #   expect: success\n\n")
		}
	}
}

func writeAssertionsSection(sb *strings.Builder, doc *runbook.Document) {
	sb.WriteString("    assertions:\n")
	sb.WriteString("      # Add assertions to validate test results:\n")
	sb.WriteString("      # - type: file_exists\n")
	sb.WriteString("      #   path: generated/README.md\n")
	sb.WriteString("      # - type: file_contains\n")
	sb.WriteString("      #   path: generated/README.md\n")
	sb.WriteString("      #   contains: \"expected content\"\n")

	for _, b := range doc.Blocks {
		if b.Kind == runbook.KindTemplate {
			sb.WriteString("      # - type: files_generated\n")
			sb.WriteString("      #   min_count: 1\n")
			break
		}
	}
	sb.WriteString("\n")
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
