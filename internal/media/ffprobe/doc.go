// Package ffprobe decodes ffprobe JSON output into typed stream and format
// metadata.
//
// Inspect runs ffprobe through a caller-supplied Runner so the process
// handling (process groups, cancellation) stays in one place and tests can
// substitute canned output.
package ffprobe
