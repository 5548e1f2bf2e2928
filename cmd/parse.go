package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"runvet/internal/runbook"
	runvetstrings "runvet/pkg/strings"
)

var parseJSON bool

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <runbook-path>",
	Short: "Parse a runbook and list its blocks",
	Long: `Parse a runbook document and print the discovered blocks: id, kind,
position, declared variables, and output dependencies, along with any id
collisions or unknown block warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print machine-readable JSON instead of a table")
}

// parseReport is the JSON shape of the parse command's output.
type parseReport struct {
	RunbookPath string              `json:"runbookPath"`
	Blocks      []parseBlock        `json:"blocks"`
	Collisions  []runbook.Collision `json:"collisions,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type parseBlock struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Position  int      `json:"position"`
	Command   string   `json:"command,omitempty"`
	Variables []string `json:"variables,omitempty"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	runbookPath := args[0]

	info, err := os.Stat(runbookPath)
	if err != nil {
		return fmt.Errorf("path not found: %s", runbookPath)
	}
	if info.IsDir() {
		runbookPath = filepath.Join(runbookPath, runbook.EntryFile)
	}

	doc, err := runbook.DiscoverFile(runbookPath)
	if err != nil {
		return fmt.Errorf("failed to parse runbook: %w", err)
	}

	report := buildParseReport(runbookPath, doc)
	if parseJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	renderParseTable(cmd, report)
	return nil
}

func buildParseReport(runbookPath string, doc *runbook.Document) parseReport {
	report := parseReport{
		RunbookPath: runbookPath,
		Collisions:  doc.Collisions,
		Warnings:    doc.Warnings,
	}
	for _, b := range doc.Blocks {
		pb := parseBlock{
			ID:       b.ID,
			Kind:     string(b.Kind),
			Position: b.Position,
			Command:  b.Command,
		}
		for _, v := range b.Variables {
			pb.Variables = append(pb.Variables, v.Name)
		}
		for _, dep := range b.OutputDeps {
			pb.DependsOn = append(pb.DependsOn, fmt.Sprintf("%s.%s", dep.BlockID, dep.OutputName))
		}
		report.Blocks = append(report.Blocks, pb)
	}
	return report
}

func renderParseTable(cmd *cobra.Command, report parseReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d block(s)\n\n", report.RunbookPath, len(report.Blocks))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Kind", "Position", "Command", "Variables", "Depends On"})
	for _, b := range report.Blocks {
		t.AppendRow(table.Row{
			b.ID, b.Kind, b.Position,
			runvetstrings.TruncateOneLine(b.Command, runvetstrings.DefaultCommandMaxLen),
			strings.Join(b.Variables, ", "),
			strings.Join(b.DependsOn, ", "),
		})
	}
	t.Render()

	for _, c := range report.Collisions {
		fmt.Fprintf(out, "%s duplicate id %q: %s collides with earlier %s (ignored)\n",
			text.FgRed.Sprint("collision:"), c.ID, c.DupKind, c.FirstKind)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(out, "%s %s\n", text.FgYellow.Sprint("warning:"), w)
	}
}
