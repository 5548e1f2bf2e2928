package runtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"runvet/internal/runbook"
	"runvet/pkg/logging"
)

// executor drives the test cases of one runbook suite. It is owned by a
// single worker: nothing in it is shared across goroutines.
type executor struct {
	doc     *runbook.Document
	runner  BlockRunner
	workDir string
	logger  Logger

	inputs  map[string]interface{}
	outputs map[string]map[string]string // normalized block id -> outputs
}

func newExecutor(doc *runbook.Document, runner BlockRunner, workDir string, logger Logger) *executor {
	return &executor{
		doc:     doc,
		runner:  runner,
		workDir: workDir,
		logger:  logger,
	}
}

// RunCase executes one test case: resolve inputs, run steps in declared
// order, evaluate per-step and post-test assertions, then always run
// cleanup. A step failure stops remaining steps but never skips cleanup.
func (e *executor) RunCase(ctx context.Context, tc TestCase) TestResult {
	start := time.Now()
	result := TestResult{TestCase: tc.Name, Status: TestPassed}

	resolved, err := ResolveInputs(tc.Inputs)
	if err != nil {
		result.Status = TestFailed
		result.Error = fmt.Sprintf("failed to resolve inputs: %v", err)
		result.Duration = time.Since(start)
		return result
	}
	e.inputs = resolved
	e.outputs = make(map[string]map[string]string)

	for _, step := range e.determineSteps(tc) {
		stepResult := e.executeStep(ctx, step)

		for _, assertion := range step.Assertions {
			ar := e.evalAssertion(assertion)
			stepResult.AssertionResults = append(stepResult.AssertionResults, ar)
			if !ar.Passed && stepResult.Passed {
				stepResult.Passed = false
				stepResult.Error = fmt.Sprintf("assertion failed: %s", ar.Message)
			}
		}

		result.StepResults = append(result.StepResults, stepResult)
		if !stepResult.Passed {
			result.Status = TestFailed
			result.Error = fmt.Sprintf("step %q failed: %s", step.Block, stepResult.Error)
			break
		}
	}

	// Post-test assertions run only when all steps passed, but they all run
	// even after one of them fails so every broken post-condition is
	// reported together.
	if result.Status != TestFailed {
		for _, assertion := range tc.Assertions {
			ar := e.evalAssertion(assertion)
			result.Assertions = append(result.Assertions, ar)
			if !ar.Passed && result.Status != TestFailed {
				result.Status = TestFailed
				result.Error = fmt.Sprintf("assertion failed: %s", ar.Message)
			}
		}
	}

	for _, cleanup := range tc.Cleanup {
		if err := e.runCleanup(ctx, cleanup); err != nil {
			logging.Error("Runner", err, "cleanup action failed for test %q", tc.Name)
			e.logger.Error("cleanup action failed: %v\n", err)
		}
	}

	result.Duration = time.Since(start)
	return result
}

// determineSteps returns the steps to execute. An empty step list means
// every executable block in document order.
func (e *executor) determineSteps(tc TestCase) []TestStep {
	if len(tc.Steps) > 0 {
		return tc.Steps
	}
	blocks := e.doc.ExecutableBlocks()
	steps := make([]TestStep, 0, len(blocks))
	for _, b := range blocks {
		steps = append(steps, TestStep{Block: b.ID, Expect: ExpectSuccess})
	}
	return steps
}

func (e *executor) executeStep(ctx context.Context, step TestStep) StepResult {
	start := time.Now()
	result := StepResult{Block: step.Block, Expect: step.Expect}

	if step.Expect == ExpectSkip {
		result.Passed = true
		result.ActualStatus = "skipped"
		result.Duration = time.Since(start)
		return result
	}

	block, ok := e.doc.Block(step.Block)
	if !ok {
		result.ActualStatus = "error"
		result.Error = fmt.Sprintf("block %q not found in runbook", step.Block)
		result.Duration = time.Since(start)
		return result
	}

	// A block whose body reads outputs that no earlier step produced cannot
	// render; fail it up front with a message naming each missing reference.
	if missing := e.missingDeps(block); len(missing) > 0 {
		result.ActualStatus = "blocked"
		result.Error = fmt.Sprintf("unsatisfied output dependencies: %s", strings.Join(missing, "; "))
		result.Passed = step.Expect == ExpectFailure
		result.Duration = time.Since(start)
		return result
	}

	outcome, err := e.runner.Run(ctx, block, e.templateVars())
	if err != nil {
		result.ActualStatus = "error"
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			result.Error = "suite timeout exceeded"
		} else {
			result.Error = err.Error()
		}
		result.Duration = time.Since(start)
		return result
	}

	result.ActualStatus = string(outcome.Status)
	result.ExitCode = outcome.ExitCode
	result.Outputs = outcome.Outputs
	if len(outcome.Outputs) > 0 {
		e.outputs[runbook.NormalizeID(block.ID)] = outcome.Outputs
	}
	if outcome.Status == RunFailure {
		result.Error = strings.TrimSpace(outcome.Stderr)
		if result.Error == "" {
			result.Error = fmt.Sprintf("block exited with code %d", outcome.ExitCode)
		}
	}

	result.Passed = matchesExpected(step.Expect, outcome.Status)
	if !result.Passed && result.Error == "" {
		result.Error = fmt.Sprintf("expected %s, got %s", step.Expect, outcome.Status)
	}
	result.Duration = time.Since(start)
	return result
}

func matchesExpected(expected ExpectedStatus, actual RunStatus) bool {
	switch expected {
	case ExpectSuccess:
		return actual == RunSuccess
	case ExpectFailure:
		return actual == RunFailure
	default:
		return false
	}
}

// missingDeps reports each of the block's output references that no earlier
// step has satisfied.
func (e *executor) missingDeps(block runbook.Block) []string {
	var missing []string
	for _, dep := range block.OutputDeps {
		outputs, ok := e.outputs[runbook.NormalizeID(dep.BlockID)]
		if !ok {
			missing = append(missing, fmt.Sprintf("_blocks.%s.outputs.%s (block %q has not run)",
				dep.BlockID, dep.OutputName, dep.BlockID))
			continue
		}
		if _, ok := outputs[dep.OutputName]; !ok {
			missing = append(missing, fmt.Sprintf("_blocks.%s.outputs.%s (block %q produced no output %q)",
				dep.BlockID, dep.OutputName, dep.BlockID, dep.OutputName))
		}
	}
	return missing
}

// templateVars assembles the variables the block runner renders with: each
// resolved input under its bare variable name, plus earlier blocks' outputs
// under _blocks.<normalized id>.outputs.<name>.
func (e *executor) templateVars() map[string]interface{} {
	vars := make(map[string]interface{})
	for key, value := range e.inputs {
		// Inputs are declared as "blockId.varName"; scripts address the
		// bare variable name.
		if idx := strings.Index(key, "."); idx >= 0 {
			vars[key[idx+1:]] = value
		} else {
			vars[key] = value
		}
	}

	blocks := make(map[string]interface{}, len(e.outputs))
	for id, outputs := range e.outputs {
		blocks[id] = map[string]interface{}{"outputs": outputs}
	}
	if len(blocks) > 0 {
		vars["_blocks"] = blocks
	}
	return vars
}

// runCleanup executes one cleanup action through the runner as a synthetic
// command block. Cleanup scripts referenced by path load relative to the
// working directory.
func (e *executor) runCleanup(ctx context.Context, action CleanupAction) error {
	block := runbook.Block{
		ID:   "cleanup",
		Kind: runbook.KindCommand,
	}
	switch {
	case action.Command != "":
		block.Command = action.Command
	case action.Path != "":
		block.ScriptPath = action.Path
	default:
		return fmt.Errorf("cleanup action must have command or path")
	}

	// Cleanup is bounded on its own so a wedged cleanup script cannot hold
	// the worker past the suite deadline indefinitely.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	outcome, err := e.runner.Run(cleanupCtx, block, e.templateVars())
	if err != nil {
		return err
	}
	if outcome.Status != RunSuccess {
		return fmt.Errorf("cleanup exited with code %d: %s", outcome.ExitCode, strings.TrimSpace(outcome.Stderr))
	}
	return nil
}
