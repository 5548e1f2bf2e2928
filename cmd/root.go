package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"runvet/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution with all tests passing.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error or at least one failed test.
	ExitCodeError = 1
)

var logLevel string

// rootCmd represents the base command for the runvet application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "runvet",
	Short: "Validate executable runbooks",
	Long: `runvet parses executable runbook documents, discovers their Check,
Command, Template, and Inputs blocks, and runs the automated test suites
declared next to them in runbook_test.yml files.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.ParseLevel(logLevel), os.Stderr)
	},
}

// SetVersion sets the version for the root command.
// This is called from the main package to inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "runvet version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level for diagnostic output (debug, info, warn, error)")
}
