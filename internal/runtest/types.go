// Package runtest runs declared test suites against runbook documents.
//
// The scheduler discovers runbooks, loads their sibling test configuration,
// partitions suites into parallel and sequential groups, and drives each test
// case through an external block-runner capability. The package owns working
// directory lifecycle, per-suite timeouts, assertion evaluation, and result
// aggregation; it never interprets block content itself.
package runtest

import (
	"context"
	"time"

	"runvet/internal/runbook"
)

// Logger receives progress and diagnostic output during a test run.
type Logger interface {
	Info(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Error(format string, args ...interface{})
	IsDebugEnabled() bool
	IsVerboseEnabled() bool
}

// RunStatus is the outcome of one block execution.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

// RunOutcome is what the block runner reports back for one execution.
type RunOutcome struct {
	Status   RunStatus
	ExitCode int
	Stdout   string
	Stderr   string

	// Outputs are the named key/value pairs the block published.
	Outputs map[string]string
}

// BlockRunner executes a single block. Implementations are constructed once
// per runbook suite and are owned exclusively by the worker running that
// suite. The vars map carries resolved input values plus an "_blocks" entry
// exposing earlier blocks' outputs for template rendering.
type BlockRunner interface {
	Run(ctx context.Context, block runbook.Block, vars map[string]interface{}) (RunOutcome, error)
	Close() error
}

// RunnerFactory builds the BlockRunner for one runbook suite. A factory
// error is a setup failure: the suite's cases are not attempted.
type RunnerFactory func(runbookPath, workDir string) (BlockRunner, error)

// TestStatus is the overall status of one test case.
type TestStatus string

const (
	TestPassed  TestStatus = "passed"
	TestFailed  TestStatus = "failed"
	TestSkipped TestStatus = "skipped"
)

// TestResult is the write-once record of one executed test case.
type TestResult struct {
	TestCase    string            `json:"testCase"`
	Status      TestStatus        `json:"status"`
	Duration    time.Duration     `json:"duration"`
	Error       string            `json:"error,omitempty"`
	StepResults []StepResult      `json:"stepResults,omitempty"`
	Assertions  []AssertionResult `json:"assertions,omitempty"`
}

// StepResult records one executed step within a test case.
type StepResult struct {
	Block            string            `json:"block"`
	Expect           ExpectedStatus    `json:"expect"`
	ActualStatus     string            `json:"actualStatus"`
	ExitCode         int               `json:"exitCode"`
	Passed           bool              `json:"passed"`
	Error            string            `json:"error,omitempty"`
	Outputs          map[string]string `json:"outputs,omitempty"`
	Duration         time.Duration     `json:"duration"`
	AssertionResults []AssertionResult `json:"assertionResults,omitempty"`
}

// AssertionResult records one evaluated assertion.
type AssertionResult struct {
	Type    AssertionType `json:"type"`
	Passed  bool          `json:"passed"`
	Message string        `json:"message,omitempty"`
}

// SuiteResult aggregates all test-case results for one runbook in one run.
// Created fresh per runbook per invocation and never mutated afterwards.
type SuiteResult struct {
	RunbookPath string        `json:"runbookPath"`
	Duration    time.Duration `json:"duration"`
	Results     []TestResult  `json:"results"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
}

func (s *SuiteResult) record(r TestResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case TestPassed:
		s.Passed++
	case TestFailed:
		s.Failed++
	case TestSkipped:
		s.Skipped++
	}
}

// Failures returns the total failed count across suites, which drives the
// process exit status. Skips do not count.
func Failures(suites []SuiteResult) int {
	var n int
	for _, s := range suites {
		n += s.Failed
	}
	return n
}
