// Package logging provides a minimal logging interface and adapters for toolflow.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, workflow steps and tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	wf, err := workflow.New(adapter, registry, func(o *workflow.Options) { o.Logger = logger })
//
// Arguments follow slog key/value conventions so any structured backend can
// be plugged in behind the interface.
package logging
