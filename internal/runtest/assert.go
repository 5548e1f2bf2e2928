package runtest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"runvet/internal/runbook"
)

// evalAssertion evaluates one declared post-condition against the working
// directory and the outputs recorded so far.
func (e *executor) evalAssertion(a TestAssertion) AssertionResult {
	switch a.Type {
	case AssertionFileExists:
		return e.assertFileExists(a)
	case AssertionFileNotExists:
		return e.assertFileNotExists(a)
	case AssertionDirExists:
		return e.assertDirExists(a)
	case AssertionFileContains:
		return e.assertFileContains(a)
	case AssertionFileMatches:
		return e.assertFileMatches(a)
	case AssertionOutputEquals:
		return e.assertOutputEquals(a)
	case AssertionOutputExists:
		return e.assertOutputExists(a)
	case AssertionFilesGenerated:
		return e.assertFilesGenerated(a)
	default:
		return AssertionResult{Type: a.Type, Passed: false,
			Message: fmt.Sprintf("unknown assertion type: %s", a.Type)}
	}
}

// resolvePath resolves an assertion path against the suite's working
// directory; absolute paths pass through.
func (e *executor) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workDir, path)
}

func (e *executor) assertFileExists(a TestAssertion) AssertionResult {
	info, err := os.Stat(e.resolvePath(a.Path))
	switch {
	case os.IsNotExist(err):
		return fail(a, "file does not exist: %s", a.Path)
	case err != nil:
		return fail(a, "error checking file: %v", err)
	case info.IsDir():
		return fail(a, "path exists but is a directory: %s", a.Path)
	}
	return pass(a)
}

func (e *executor) assertFileNotExists(a TestAssertion) AssertionResult {
	_, err := os.Stat(e.resolvePath(a.Path))
	if os.IsNotExist(err) {
		return pass(a)
	}
	if err != nil {
		return fail(a, "error checking file: %v", err)
	}
	return fail(a, "file exists but should not: %s", a.Path)
}

func (e *executor) assertDirExists(a TestAssertion) AssertionResult {
	info, err := os.Stat(e.resolvePath(a.Path))
	switch {
	case os.IsNotExist(err):
		return fail(a, "directory does not exist: %s", a.Path)
	case err != nil:
		return fail(a, "error checking directory: %v", err)
	case !info.IsDir():
		return fail(a, "path exists but is not a directory: %s", a.Path)
	}
	return pass(a)
}

func (e *executor) assertFileContains(a TestAssertion) AssertionResult {
	content, err := os.ReadFile(e.resolvePath(a.Path))
	if err != nil {
		return fail(a, "failed to read file: %v", err)
	}
	if !strings.Contains(string(content), a.Contains) {
		return fail(a, "file %s does not contain %q", a.Path, a.Contains)
	}
	return pass(a)
}

func (e *executor) assertFileMatches(a TestAssertion) AssertionResult {
	content, err := os.ReadFile(e.resolvePath(a.Path))
	if err != nil {
		return fail(a, "failed to read file: %v", err)
	}
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return fail(a, "invalid regex pattern: %v", err)
	}
	if !re.Match(content) {
		return fail(a, "file %s does not match pattern %q", a.Path, a.Pattern)
	}
	return pass(a)
}

func (e *executor) assertOutputEquals(a TestAssertion) AssertionResult {
	actual, result, ok := e.lookupOutput(a)
	if !ok {
		return result
	}
	if actual != a.Value {
		return fail(a, "output %s.%s = %q, expected %q", a.Block, a.Output, actual, a.Value)
	}
	return pass(a)
}

func (e *executor) assertOutputExists(a TestAssertion) AssertionResult {
	if _, result, ok := e.lookupOutput(a); !ok {
		return result
	}
	return pass(a)
}

func (e *executor) lookupOutput(a TestAssertion) (string, AssertionResult, bool) {
	outputs, ok := e.outputs[runbook.NormalizeID(a.Block)]
	if !ok {
		return "", fail(a, "block %q has no outputs", a.Block), false
	}
	actual, ok := outputs[a.Output]
	if !ok {
		return "", fail(a, "block %q has no output %q", a.Block, a.Output), false
	}
	return actual, AssertionResult{}, true
}

// assertFilesGenerated walks the working directory and requires at least
// MinCount regular files.
func (e *executor) assertFilesGenerated(a TestAssertion) AssertionResult {
	var count int
	err := filepath.Walk(e.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return fail(a, "failed to walk working directory: %v", err)
	}
	if count < a.MinCount {
		return fail(a, "expected at least %d generated files, found %d", a.MinCount, count)
	}
	return pass(a)
}

func pass(a TestAssertion) AssertionResult {
	return AssertionResult{Type: a.Type, Passed: true}
}

func fail(a TestAssertion, format string, args ...interface{}) AssertionResult {
	return AssertionResult{Type: a.Type, Passed: false, Message: fmt.Sprintf(format, args...)}
}
