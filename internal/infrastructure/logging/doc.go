// Package logging provides structured logging for Lumina Core.
//
// It wraps the standard library's log/slog with:
//   - Configurable output format (JSON or text)
//   - Level-based filtering (debug, info, warn, error)
//   - Default fields on every record (service, version)
//   - Component-scoped child loggers via With()
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	controlLog := logger.With("component", "control")
//	controlLog.Info("session opened", "remote", conn.RemoteAddr())
package logging
