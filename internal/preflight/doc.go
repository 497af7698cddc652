// Package preflight provides readiness checks for the binaries, directories
// and backends vidforge depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to consume jobs while a
//     required check fails.
//   - The CLI "vidforge check" command prints every result.
package preflight
