// Package api defines wire-format types and the job and video services
// shared by the HTTP server and the CLI.
//
// # Key Types
//
// Job: transport representation of a job with status, stage, progress,
// error and result.
//
// JobStatus: the polling shape {status, stage, progress, error?, result?}.
//
// Video: a video project with its storyboard and latest result.
//
// WorkflowStatus / DaemonStatus: consumer state, queue depth, stage health
// and dependency checks.
//
// # Services
//
// JobService.Submit validates the provider config through the registry,
// creates the job in its video's single active slot, appends history and
// enqueues the message. A failed enqueue marks the job FAILED so the slot
// is released.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums are exposed as their stored upper-case
// strings. Timestamps use RFC3339 with milliseconds.
package api
