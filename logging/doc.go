// Package logging provides a minimal logging interface and adapters for Colloquy.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, runner and server use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - LogTurn helper recording the outcome of a single speaking turn
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: "json"})
//	r := runner.New(factory, func(o *runner.Options) { o.Logger = logger })
//
// Arguments follow the slog key/value convention.
package logging
