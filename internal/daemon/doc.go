// Package daemon coordinates the long-running vidforge worker process.
//
// It wires configuration, the project store, the queue consumer and the
// admin HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances against the same state directory. On start it sweeps
// stale staging workdirs and logs preflight results; failed checks are
// reported but do not block startup, since a missing provider credential
// only matters for jobs that select that provider.
//
// Keep orchestration logic here: pipeline stages live in their own packages
// while the daemon focuses on startup, shutdown and status reporting.
package daemon
