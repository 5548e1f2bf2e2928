package shellrun

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"runvet/internal/runbook"
	"runvet/internal/runtest"
)

// renderTemplateBlock renders a template block to its declared output path,
// relative to the working directory. Inline blocks render their body; file
// blocks render the referenced template.
func (r *Runner) renderTemplateBlock(block runbook.Block, vars map[string]interface{}) (runtest.RunOutcome, error) {
	var content string
	switch {
	case block.Kind == runbook.KindTemplateInline:
		content = block.Body
	case block.TemplatePath != "":
		path := block.TemplatePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.runbookDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return runtest.RunOutcome{}, fmt.Errorf("failed to read template %s: %w", block.TemplatePath, err)
		}
		content = string(data)
	default:
		return runtest.RunOutcome{}, fmt.Errorf("template block %q names no template", block.ID)
	}

	if block.OutputPath == "" {
		return runtest.RunOutcome{}, fmt.Errorf("template block %q names no output path", block.ID)
	}

	rendered, err := renderContent(content, vars)
	if err != nil {
		return runtest.RunOutcome{
			Status:   runtest.RunFailure,
			ExitCode: 1,
			Stderr:   err.Error(),
		}, nil
	}

	outPath := block.OutputPath
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(r.workDir, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return runtest.RunOutcome{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(rendered), 0644); err != nil {
		return runtest.RunOutcome{}, fmt.Errorf("failed to write %s: %w", block.OutputPath, err)
	}

	r.logger.Debug("rendered template block %q to %s\n", block.ID, block.OutputPath)
	return runtest.RunOutcome{
		Status:  runtest.RunSuccess,
		Outputs: map[string]string{"path": block.OutputPath},
	}, nil
}

// renderContent substitutes {{ .Var }} and {{ ._blocks... }} references. A
// reference to a variable that was never provided is an error rather than
// "<no value>" in the output.
func renderContent(content string, vars map[string]interface{}) (string, error) {
	tmpl, err := template.New("block").Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, vars); err != nil {
		return "", err
	}
	return out.String(), nil
}
