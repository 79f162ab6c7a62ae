// Package logging provides structured logging for bootprobe components.
//
// It wraps the standard library slog package with project defaults:
// JSON output to stderr, environment-based level configuration
// (LOG_LEVEL), module/version context on every record, and source
// location tracking for debug logs.
//
// Setting the default logger (recommended):
//
//	func main() {
//	    logging.SetDefaultStructuredLogger("bootprobe", version)
//
//	    slog.Info("run started", "host", host)
//	    slog.Error("probe failed", "error", err, "probe", name)
//	}
//
// The LOG_LEVEL environment variable controls verbosity (DEBUG, INFO,
// WARN, ERROR; case-insensitive). Unset defaults to INFO.
package logging
