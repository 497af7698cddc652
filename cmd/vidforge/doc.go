// Package main hosts the vidforge CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the queue worker (`vidforge worker`),
// submits and inspects jobs and videos against the shared project store and
// queue, queries a running worker's admin API, tails the worker log and
// scaffolds configuration.
// Job and video commands open the database and queue directly, so they work
// whether or not a worker is running.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
