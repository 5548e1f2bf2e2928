package shellrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"runvet/internal/runbook"
	"runvet/internal/runtest"
	"runvet/pkg/logging"
)

// OutputEnvVar names the file a script writes key=value output lines to.
const OutputEnvVar = "RUNVET_OUTPUT"

func (r *Runner) runScriptBlock(ctx context.Context, block runbook.Block, vars map[string]interface{}) (runtest.RunOutcome, error) {
	script, err := r.scriptContent(block)
	if err != nil {
		return runtest.RunOutcome{}, err
	}

	rendered, err := renderContent(script, vars)
	if err != nil {
		return runtest.RunOutcome{}, fmt.Errorf("failed to render block %q: %w", block.ID, err)
	}

	outputFile, err := os.CreateTemp("", "runvet-output-*.txt")
	if err != nil {
		return runtest.RunOutcome{}, fmt.Errorf("failed to create output file: %w", err)
	}
	outputPath := outputFile.Name()
	outputFile.Close()
	defer os.Remove(outputPath)

	scriptFile, err := os.CreateTemp("", "runvet-script-*.sh")
	if err != nil {
		return runtest.RunOutcome{}, fmt.Errorf("failed to create script file: %w", err)
	}
	scriptPath := scriptFile.Name()
	if _, err := scriptFile.WriteString(rendered); err != nil {
		scriptFile.Close()
		os.Remove(scriptPath)
		return runtest.RunOutcome{}, fmt.Errorf("failed to write script file: %w", err)
	}
	scriptFile.Close()
	os.Chmod(scriptPath, 0700)
	defer os.Remove(scriptPath)

	interpreter, args := detectInterpreter(rendered)
	cmd := exec.CommandContext(ctx, interpreter, append(args, scriptPath)...)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", OutputEnvVar, outputPath))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("Runner", "executing block %q via %s", block.ID, interpreter)
	r.logger.Debug("running block %q via %s\n", block.ID, interpreter)
	runErr := cmd.Run()

	outcome := runtest.RunOutcome{
		Status: runtest.RunSuccess,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return runtest.RunOutcome{}, context.DeadlineExceeded
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
		} else {
			return runtest.RunOutcome{}, fmt.Errorf("failed to start block %q: %w", block.ID, runErr)
		}
		outcome.Status = runtest.RunFailure
		return outcome, nil
	}

	outputs, err := parseOutputs(outputPath)
	if err != nil {
		return runtest.RunOutcome{}, fmt.Errorf("failed to read block outputs: %w", err)
	}
	outcome.Outputs = outputs

	if r.logger.IsVerboseEnabled() && outcome.Stdout != "" {
		r.logger.Info("%s", outcome.Stdout)
	}
	return outcome, nil
}

// detectInterpreter picks the interpreter from the script's shebang, falling
// back to bash. "#!/usr/bin/env python3" yields ("python3", nil);
// "#!/bin/sh -e" yields ("sh", ["-e"]).
func detectInterpreter(script string) (string, []string) {
	line, _, _ := strings.Cut(script, "\n")
	if !strings.HasPrefix(line, "#!") {
		return "bash", nil
	}

	fields := strings.Fields(strings.TrimSpace(line[2:]))
	if len(fields) == 0 {
		return "bash", nil
	}

	if strings.HasSuffix(fields[0], "/env") && len(fields) >= 2 {
		return fields[1], fields[2:]
	}

	interpreter := fields[0]
	if idx := strings.LastIndex(interpreter, "/"); idx != -1 {
		interpreter = interpreter[idx+1:]
	}
	return interpreter, fields[1:]
}

// parseOutputs reads key=value lines from the outputs file. Blank lines and
// lines without "=" are ignored; a missing file means no outputs.
func parseOutputs(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	outputs := make(map[string]string)
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		outputs[strings.TrimSpace(key)] = value
	}
	if len(outputs) == 0 {
		return nil, nil
	}
	return outputs, nil
}
