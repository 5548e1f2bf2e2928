package runtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"runvet/internal/runbook"
	"runvet/pkg/logging"
)

// DefaultMaxParallel bounds the parallel group when no override is given.
const DefaultMaxParallel = 4

// SchedulerConfig carries the run-wide options.
type SchedulerConfig struct {
	// MaxParallel bounds concurrent suite executions (0 = default of 4).
	MaxParallel int

	// TestFilter selects a single named test case when non-empty.
	TestFilter string
}

// Scheduler discovers runbooks and runs their test suites.
type Scheduler struct {
	cfg     SchedulerConfig
	factory RunnerFactory
	logger  Logger
}

// NewScheduler creates a scheduler. The factory builds one BlockRunner per
// runbook suite; a nil logger discards output.
func NewScheduler(cfg SchedulerConfig, factory RunnerFactory, logger Logger) *Scheduler {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return &Scheduler{cfg: cfg, factory: factory, logger: logger}
}

// DiscoverRunbooks resolves path arguments into runbook documents carrying a
// test configuration. Accepted forms: a direct path to a runbook document, a
// directory containing one, or a recursive pattern ending in "/...". A
// runbook without a sibling config is skipped with a warning; absence of
// tests is not a failure. Results are absolute, de-duplicated, and returned
// in traversal order.
func (s *Scheduler) DiscoverRunbooks(paths []string) ([]string, error) {
	var runbooks []string
	seen := make(map[string]bool)

	appendRunbook := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if !seen[abs] {
			seen[abs] = true
			runbooks = append(runbooks, abs)
		}
	}

	for _, pattern := range paths {
		if strings.HasSuffix(pattern, "/...") {
			base := strings.TrimSuffix(pattern, "/...")
			if base == "" {
				base = "."
			}
			err := filepath.Walk(base, func(path string, info os.FileInfo, err error) error {
				if err != nil || info.IsDir() {
					return nil
				}
				if filepath.Base(path) != runbook.EntryFile {
					return nil
				}
				if _, err := os.Stat(ConfigPath(path)); err != nil {
					return nil
				}
				appendRunbook(path)
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		info, err := os.Stat(pattern)
		if err != nil {
			return nil, fmt.Errorf("path not found: %s", pattern)
		}

		runbookPath := pattern
		if info.IsDir() {
			runbookPath = filepath.Join(pattern, runbook.EntryFile)
		}
		if _, err := os.Stat(runbookPath); err != nil {
			return nil, fmt.Errorf("runbook not found: %s", runbookPath)
		}

		if _, err := os.Stat(ConfigPath(runbookPath)); err != nil {
			logging.Warn("Scheduler", "no %s found for %s, skipping", ConfigFile, runbookPath)
			continue
		}
		appendRunbook(runbookPath)
	}

	logging.Debug("Scheduler", "discovered %d runbook(s)", len(runbooks))
	return runbooks, nil
}

// Run executes the suites of all given runbooks and returns one SuiteResult
// per runbook, sorted by runbook path. Parallelizable suites run first under
// a bounded task group; the rest run sequentially on the calling goroutine.
// A failing suite never aborts the run.
func (s *Scheduler) Run(ctx context.Context, runbooks []string) []SuiteResult {
	var parallel, sequential []string
	for _, path := range runbooks {
		config, err := LoadConfig(ConfigPath(path))
		if err != nil {
			// The load error surfaces again as the suite's "config" result;
			// partitioning just puts unloadable configs in the sequential
			// group.
			sequential = append(sequential, path)
			continue
		}
		if config.Settings.IsParallelizable() {
			parallel = append(parallel, path)
		} else {
			sequential = append(sequential, path)
		}
	}

	results := make(chan SuiteResult, len(parallel))
	if len(parallel) > 0 {
		workers := s.cfg.MaxParallel
		if workers <= 0 {
			workers = DefaultMaxParallel
		}
		if workers > len(parallel) {
			workers = len(parallel)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, path := range parallel {
			path := path
			g.Go(func() error {
				results <- s.runSuite(gctx, path)
				return nil
			})
		}
		// Workers never return errors; join-on-all is the point.
		_ = g.Wait()
	}
	close(results)

	var suites []SuiteResult
	for suite := range results {
		suites = append(suites, suite)
	}
	for _, path := range sequential {
		suites = append(suites, s.runSuite(ctx, path))
	}

	// Parallel completion order is arbitrary; report order must not be.
	sort.Slice(suites, func(i, j int) bool {
		return suites[i].RunbookPath < suites[j].RunbookPath
	})
	return suites
}

// runSuite executes every selected test case of one runbook. Failure kinds
// stay distinguishable: a config load failure yields a single "config"
// result, a working-directory or runner construction failure a single
// "setup" result, and per-case failures carry their own causes.
func (s *Scheduler) runSuite(ctx context.Context, runbookPath string) SuiteResult {
	start := time.Now()
	suite := SuiteResult{RunbookPath: runbookPath}

	finish := func() SuiteResult {
		suite.Duration = time.Since(start)
		return suite
	}
	failWith := func(kind string, err error) SuiteResult {
		suite.record(TestResult{
			TestCase: kind,
			Status:   TestFailed,
			Error:    err.Error(),
		})
		return finish()
	}

	config, err := LoadConfig(ConfigPath(runbookPath))
	if err != nil {
		return failWith("config", fmt.Errorf("failed to load config: %w", err))
	}

	doc, err := runbook.DiscoverFile(runbookPath)
	if err != nil {
		return failWith("config", fmt.Errorf("failed to parse runbook: %w", err))
	}
	for _, w := range doc.Warnings {
		logging.Warn("Scheduler", "%s: %s", runbookPath, w)
	}
	for _, c := range doc.Collisions {
		s.logger.Error("%s: duplicate block id %q (%s collides with earlier %s); the later block is ignored\n",
			runbookPath, c.ID, c.DupKind, c.FirstKind)
	}

	workDir, cleanupWorkDir, err := ResolveWorkDir(runbookPath, config.Settings)
	if err != nil {
		return failWith("setup", err)
	}
	if cleanupWorkDir != nil {
		defer cleanupWorkDir()
	}

	runner, err := s.factory(runbookPath, workDir)
	if err != nil {
		return failWith("setup", fmt.Errorf("failed to create block runner: %w", err))
	}
	defer runner.Close()

	// One deadline bounds the entire suite. Cases still pending when it
	// fires are recorded as timed out, never silently dropped.
	suiteCtx, cancel := context.WithTimeout(ctx, config.Settings.SuiteTimeout())
	defer cancel()

	exec := newExecutor(doc, runner, workDir, s.logger)
	for _, tc := range config.Tests {
		if s.cfg.TestFilter != "" && tc.Name != s.cfg.TestFilter {
			continue
		}

		if suiteCtx.Err() != nil {
			suite.record(TestResult{
				TestCase: tc.Name,
				Status:   TestFailed,
				Error:    fmt.Sprintf("suite timeout (%s) exceeded", config.Settings.Timeout),
			})
			continue
		}

		s.logger.Info("=== RUN   %s (%s)\n", tc.Name, filepath.Base(filepath.Dir(runbookPath)))
		suite.record(exec.RunCase(suiteCtx, tc))
	}

	return finish()
}
