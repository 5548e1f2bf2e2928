package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"runvet/internal/runtest"
	"runvet/internal/shellrun"
)

var (
	testVerbose     bool
	testDebug       bool
	testName        string
	testOutput      string
	testOutputFile  string
	testMaxParallel int
	testWatch       bool
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test <runbook-path>...",
	Short: "Run automated tests for runbooks",
	Long: `Run the automated test suites declared in runbook_test.yml files.

Paths may name a runbook.mdx file directly, a directory containing one, or a
recursive pattern ending in /... to discover every tested runbook below it:

  runvet test docs/deploy
  runvet test docs/deploy/runbook.mdx docs/migrate
  runvet test docs/...

Runbooks whose config allows it run in parallel; the rest run sequentially
after. The exit code is non-zero when any test fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().BoolVarP(&testVerbose, "verbose", "v", false, "Enable verbose output (show step detail and script output)")
	testCmd.Flags().BoolVar(&testDebug, "debug", false, "Enable debug logging")
	testCmd.Flags().StringVar(&testName, "test", "", "Run only the specified test case")
	testCmd.Flags().StringVar(&testOutput, "output", "text", "Output format (text or junit)")
	testCmd.Flags().StringVar(&testOutputFile, "output-file", "", "Write the report to a file instead of stdout")
	testCmd.Flags().IntVar(&testMaxParallel, "max-parallel", 0, "Maximum number of parallel suite executions (0 = auto)")
	testCmd.Flags().BoolVar(&testWatch, "watch", false, "Re-run affected suites when runbooks or configs change")

	testCmd.MarkFlagsMutuallyExclusive("watch", "output-file")

	testCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if testOutput != "text" && testOutput != "junit" {
			return fmt.Errorf("invalid output format %q (expected text or junit)", testOutput)
		}
		if testMaxParallel < 0 {
			return fmt.Errorf("max-parallel must be non-negative, got %d", testMaxParallel)
		}
		return nil
	}
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupts gracefully.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, stopping tests...")
		cancel()
	}()

	logger := testLogger()
	scheduler := runtest.NewScheduler(runtest.SchedulerConfig{
		MaxParallel: testMaxParallel,
		TestFilter:  testName,
	}, shellrun.Factory(logger), logger)

	runbooks, err := scheduler.DiscoverRunbooks(args)
	if err != nil {
		return fmt.Errorf("failed to discover runbooks: %w", err)
	}
	if len(runbooks) == 0 {
		return fmt.Errorf("no runbooks found matching %v", args)
	}

	if testWatch {
		return watchAndRun(ctx, scheduler, logger, runbooks)
	}

	suites := runWithSpinner(ctx, scheduler, runbooks)
	if err := runtest.WriteReport(testReporter(), suites, testOutputFile); err != nil {
		return err
	}

	if runtest.Failures(suites) > 0 {
		os.Exit(ExitCodeError)
	}
	return nil
}

// runWithSpinner executes the suites with a progress spinner when output is
// quiet enough for one not to garble anything.
func runWithSpinner(ctx context.Context, scheduler *runtest.Scheduler, runbooks []string) []runtest.SuiteResult {
	var s *spinner.Spinner
	if !testVerbose && testOutput == "text" {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Running tests for %d runbook(s)...", len(runbooks))
		s.Start()
	}

	suites := scheduler.Run(ctx, runbooks)

	if s != nil {
		s.Stop()
	}
	return suites
}

// watchAndRun runs all suites once, then re-runs a runbook's suite whenever
// its document or test config changes. It returns when the context is
// cancelled; watch mode never exits non-zero on test failures.
func watchAndRun(ctx context.Context, scheduler *runtest.Scheduler, logger runtest.Logger, runbooks []string) error {
	reporter := testReporter()

	suites := runWithSpinner(ctx, scheduler, runbooks)
	if err := reporter.Report(suites); err != nil {
		return err
	}

	watcher, err := runtest.NewWatcher(runbooks, logger)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Stop()

	fmt.Fprintln(os.Stderr, "\nWatching for changes... (Ctrl+C to stop)")
	for changed := range watcher.Changes(ctx) {
		fmt.Fprintf(os.Stderr, "\nChange detected: %s\n", changed)
		suites := runWithSpinner(ctx, scheduler, []string{changed})
		if err := reporter.Report(suites); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "\nWatching for changes... (Ctrl+C to stop)")
	}
	return nil
}

// testLogger builds the run logger: progress output goes to stdout unless
// the report itself is machine-readable on stdout.
func testLogger() runtest.Logger {
	if testOutput == "junit" && testOutputFile == "" {
		return runtest.NewSilentLogger()
	}
	return runtest.NewStdoutLogger(testVerbose, testDebug)
}

func testReporter() runtest.Reporter {
	if testOutput == "junit" {
		return runtest.NewJUnitReporter(nil)
	}
	return runtest.NewTextReporter(nil, testVerbose)
}
