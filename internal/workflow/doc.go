// Package workflow consumes the job queue.
//
// The Consumer runs a fixed pool of workers. Each worker leases a message,
// keeps the lease alive with a heartbeat while the pipeline orchestrator
// runs the job, and then settles the message: ack on success, a delayed
// retry while the retry policy allows another attempt, or dead-letter once
// it is exhausted. Terminal outcomes are published through the
// notifications service and counted in the metrics package.
//
// Redelivery is safe because the orchestrator skips jobs that are already
// terminal, so a message whose ack was lost is acked on its next delivery
// without running the pipeline again.
package workflow
