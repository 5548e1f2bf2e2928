package runtest

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Reporter renders the aggregated results of one run.
type Reporter interface {
	Report(suites []SuiteResult) error
}

// TextReporter renders a human-readable report: per-suite case detail plus a
// closing summary table.
type TextReporter struct {
	Writer  io.Writer
	Verbose bool
}

// NewTextReporter creates a text reporter. A nil writer means stdout.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{Writer: w, Verbose: verbose}
}

func (r *TextReporter) Report(suites []SuiteResult) error {
	for _, suite := range suites {
		path := suite.RunbookPath
		if rel, err := filepath.Rel(".", path); err == nil && rel != "" {
			path = rel
		}
		fmt.Fprintf(r.Writer, "\n=== %s ===\n", path)

		for _, result := range suite.Results {
			icon, color := statusGlyph(result.Status)
			fmt.Fprintf(r.Writer, "  %s %s (%s)\n",
				color.Sprint(icon), result.TestCase, result.Duration.Round(time.Millisecond))
			if result.Error != "" {
				fmt.Fprintf(r.Writer, "    %s\n", color.Sprintf("Error: %s", result.Error))
			}
			if r.Verbose {
				r.reportDetail(result)
			}
		}
	}

	r.reportSummary(suites)
	return nil
}

func (r *TextReporter) reportDetail(result TestResult) {
	for _, step := range result.StepResults {
		icon, color := stepGlyph(step.Passed)
		outputInfo := ""
		if len(step.Outputs) > 0 {
			outputInfo = fmt.Sprintf(" [%d output(s)]", len(step.Outputs))
		}
		fmt.Fprintf(r.Writer, "    %s %s: %s%s (%s)\n",
			color.Sprint(icon), step.Block, step.ActualStatus, outputInfo,
			step.Duration.Round(time.Millisecond))
		if step.Error != "" && step.Error != result.Error {
			fmt.Fprintf(r.Writer, "      Error: %s\n", step.Error)
		}
		for _, ar := range step.AssertionResults {
			r.reportAssertion(ar)
		}
	}
	for _, ar := range result.Assertions {
		r.reportAssertion(ar)
	}
}

func (r *TextReporter) reportAssertion(ar AssertionResult) {
	icon, color := stepGlyph(ar.Passed)
	fmt.Fprintf(r.Writer, "    %s assertion %s\n", color.Sprint(icon), ar.Type)
	if ar.Message != "" {
		fmt.Fprintf(r.Writer, "      %s\n", ar.Message)
	}
}

func (r *TextReporter) reportSummary(suites []SuiteResult) {
	var totalPassed, totalFailed, totalSkipped int
	var totalDuration time.Duration

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Runbook", "Passed", "Failed", "Skipped", "Duration"})

	for _, suite := range suites {
		name := filepath.Base(filepath.Dir(suite.RunbookPath))
		failed := fmt.Sprintf("%d", suite.Failed)
		if suite.Failed > 0 {
			failed = text.FgRed.Sprint(failed)
		}
		t.AppendRow(table.Row{
			name, suite.Passed, failed, suite.Skipped,
			suite.Duration.Round(time.Millisecond),
		})
		totalPassed += suite.Passed
		totalFailed += suite.Failed
		totalSkipped += suite.Skipped
		totalDuration += suite.Duration
	}

	fmt.Fprintln(r.Writer)
	t.Render()

	color := text.FgGreen
	if totalFailed > 0 {
		color = text.FgRed
	}
	fmt.Fprintf(r.Writer, "%s (total: %s)\n",
		color.Sprintf("Results: %d passed, %d failed, %d skipped", totalPassed, totalFailed, totalSkipped),
		totalDuration.Round(time.Millisecond))
}

func statusGlyph(status TestStatus) (string, text.Color) {
	switch status {
	case TestFailed:
		return "✗", text.FgRed
	case TestSkipped:
		return "○", text.FgYellow
	default:
		return "✓", text.FgGreen
	}
}

func stepGlyph(passed bool) (string, text.Color) {
	if passed {
		return "✓", text.FgGreen
	}
	return "✗", text.FgRed
}

// JUnitReporter renders JUnit XML for CI integration.
type JUnitReporter struct {
	Writer io.Writer
}

// NewJUnitReporter creates a JUnit reporter. A nil writer means stdout.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	if w == nil {
		w = os.Stdout
	}
	return &JUnitReporter{Writer: w}
}

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     float64          `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     float64         `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

func (r *JUnitReporter) Report(suites []SuiteResult) error {
	out := junitTestSuites{}

	for _, suite := range suites {
		js := junitTestSuite{
			Name:     suite.RunbookPath,
			Tests:    len(suite.Results),
			Failures: suite.Failed,
			Skipped:  suite.Skipped,
			Time:     suite.Duration.Seconds(),
		}

		for _, result := range suite.Results {
			tc := junitTestCase{
				Name:      result.TestCase,
				ClassName: filepath.Base(filepath.Dir(suite.RunbookPath)),
				Time:      result.Duration.Seconds(),
			}
			switch result.Status {
			case TestFailed:
				var details []string
				if result.Error != "" {
					details = append(details, result.Error)
				}
				for _, step := range result.StepResults {
					if !step.Passed {
						details = append(details, fmt.Sprintf("Block %s: %s", step.Block, step.Error))
					}
				}
				for _, ar := range result.Assertions {
					if !ar.Passed {
						details = append(details, fmt.Sprintf("Assertion %s: %s", ar.Type, ar.Message))
					}
				}
				tc.Failure = &junitFailure{
					Message: result.Error,
					Type:    "TestFailure",
					Content: strings.Join(details, "\n"),
				}
			case TestSkipped:
				tc.Skipped = &junitSkipped{}
			}
			js.Cases = append(js.Cases, tc)
		}

		out.Suites = append(out.Suites, js)
		out.Tests += js.Tests
		out.Failures += js.Failures
		out.Skipped += js.Skipped
		out.Time += js.Time
	}

	fmt.Fprintln(r.Writer, `<?xml version="1.0" encoding="UTF-8"?>`)
	enc := xml.NewEncoder(r.Writer)
	enc.Indent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	fmt.Fprintln(r.Writer)
	return nil
}

// fileWriterReporter rebuilds a reporter of the same format against a new
// writer, so file output reuses the stdout rendering paths.
type formatRebuilder interface {
	withWriter(w io.Writer) Reporter
}

func (r *TextReporter) withWriter(w io.Writer) Reporter {
	return &TextReporter{Writer: w, Verbose: r.Verbose}
}

func (r *JUnitReporter) withWriter(w io.Writer) Reporter {
	return &JUnitReporter{Writer: w}
}

// WriteReport renders to the given file path, or to the reporter's own
// writer when the path is empty. If the file cannot be created the report
// falls back to the reporter's writer with a warning on stderr; results are
// never dropped.
func WriteReport(r Reporter, suites []SuiteResult, path string) error {
	if path == "" {
		return r.Report(suites)
	}

	rb, ok := r.(formatRebuilder)
	if !ok {
		return r.Report(suites)
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot write report to %s: %v; writing to stdout\n", path, err)
		return r.Report(suites)
	}
	defer f.Close()
	return rb.withWriter(f).Report(suites)
}
