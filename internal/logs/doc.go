// Package logs reads the worker log file for the CLI.
//
// Tail returns the last N lines (negative offset) or everything after a byte
// offset, optionally filtered to lines that mention a job or video id. Follow
// keeps polling from the returned offset until the context ends, which backs
// `vidforge logs --follow`.
package logs
