// Package shellrun executes runbook blocks as local shell scripts. It is the
// reference runtest.BlockRunner: block bodies and referenced scripts run
// through an interpreter detected from their shebang, template blocks render
// to their declared output paths, and blocks publish outputs by writing
// key=value lines to the file named by the RUNVET_OUTPUT environment
// variable.
package shellrun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"runvet/internal/runbook"
	"runvet/internal/runtest"
)

// Runner executes the blocks of one runbook suite. Scripts referenced by
// path resolve against the runbook's directory; everything runs with the
// suite's working directory as its cwd.
type Runner struct {
	runbookDir string
	workDir    string
	logger     runtest.Logger
}

// New creates a runner for one runbook suite.
func New(runbookPath, workDir string, logger runtest.Logger) *Runner {
	if logger == nil {
		logger = runtest.NewSilentLogger()
	}
	return &Runner{
		runbookDir: filepath.Dir(runbookPath),
		workDir:    workDir,
		logger:     logger,
	}
}

// Factory adapts New to the scheduler's per-suite construction hook.
func Factory(logger runtest.Logger) runtest.RunnerFactory {
	return func(runbookPath, workDir string) (runtest.BlockRunner, error) {
		return New(runbookPath, workDir, logger), nil
	}
}

// Run executes one block. Template blocks render to their output path;
// every other kind runs as a shell script.
func (r *Runner) Run(ctx context.Context, block runbook.Block, vars map[string]interface{}) (runtest.RunOutcome, error) {
	switch block.Kind {
	case runbook.KindTemplate, runbook.KindTemplateInline:
		return r.renderTemplateBlock(block, vars)
	default:
		return r.runScriptBlock(ctx, block, vars)
	}
}

// Close releases the runner. Scripts leave nothing behind: every temp file
// is removed per execution.
func (r *Runner) Close() error {
	return nil
}

// scriptContent resolves a block's script source: the command attribute, a
// referenced script file, or the block body, in that order.
func (r *Runner) scriptContent(block runbook.Block) (string, error) {
	if block.Command != "" {
		return block.Command, nil
	}
	if block.ScriptPath != "" {
		path := block.ScriptPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.runbookDir, path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read script %s: %w", block.ScriptPath, err)
		}
		return string(content), nil
	}
	if block.Body != "" {
		return block.Body, nil
	}
	return "", fmt.Errorf("block %q has no command, script path, or body", block.ID)
}
