// Package database provides SQLite persistence for Lumina Core.
//
// It wraps database/sql with:
//   - Connection configuration (WAL mode, busy timeout, foreign keys)
//   - Embedded schema migrations applied at startup
//   - Health checks for readiness probes
//
// SQLite is opened with a single writer connection. Repositories in
// internal/auth, internal/device, internal/house, and internal/activity
// build on this package.
package database
