// Package logging provides structured logging for runvet built on Go's
// standard slog package.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// # Usage
//
//	import "runvet/pkg/logging"
//
//	// Initialize with Info level logging to stderr
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	// Log messages
//	logging.Info("Scheduler", "Discovered %d runbooks", len(runbooks))
//	logging.Debug("Discovery", "Parsed %s", path)
//	logging.Warn("Watcher", "Change queue full, dropping event")
//	logging.Error("Runner", err, "Block execution failed")
//
// Logs carry a subsystem attribute for filtering: Discovery, Scheduler,
// Runner, Watcher, Reporter.
//
// The logging system is thread-safe; level filtering happens at the handler
// so filtered-out messages cost no allocation.
package logging
