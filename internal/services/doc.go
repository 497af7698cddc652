// Package services defines the error taxonomy and context helpers shared by
// the pipeline stages, the queue consumer, and the external integrations.
//
// Key responsibilities:
//   - Sentinel error markers (validation, not found, provider, media
//     processing, storage) plus the Wrap helper that attaches stage and
//     operation context while keeping the marker matchable with errors.Is.
//   - ValidationError, which carries field-level messages for provider
//     configuration checks.
//   - Context helpers that stamp job IDs, video IDs, stage names, worker
//     names, and correlation identifiers for logging.
//
// Use these helpers when wiring new stage logic so failure recording and
// observability stay uniform across the pipeline.
package services
