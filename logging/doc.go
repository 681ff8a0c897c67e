// Package logging provides structured logging for sqlbridge.
//
// It wraps log/slog with level-based filtering, JSON or text output, and
// default fields (service name, version). Engine adapters receive a Logger
// and emit query traces at debug level when their log flag is enabled;
// rollback and cleanup failures are logged at warn level so they surface
// without masking the primary error.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
package logging
