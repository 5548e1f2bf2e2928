package runtest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ResolveWorkDir determines the working directory for one runbook's suite.
// Precedence is total and deterministic: use_temp_working_dir > working_dir >
// process current directory. The returned cleanup func is non-nil only for
// temp directories and removes them recursively; callers must invoke it on
// every exit path.
func ResolveWorkDir(runbookPath string, settings TestSettings) (string, func(), error) {
	if settings.UseTempWorkingDir {
		dir, err := os.MkdirTemp("", "runvet-work-"+uuid.NewString()[:8]+"-*")
		if err != nil {
			return "", nil, fmt.Errorf("failed to create temp working directory: %w", err)
		}
		return dir, func() { os.RemoveAll(dir) }, nil
	}

	if wd := settings.WorkingDir; wd != "" {
		if wd == "." {
			return filepath.Dir(runbookPath), nil, nil
		}
		if filepath.IsAbs(wd) {
			return wd, nil, nil
		}
		return filepath.Join(filepath.Dir(runbookPath), wd), nil, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get current working directory: %w", err)
	}
	return cwd, nil, nil
}
