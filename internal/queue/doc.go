// Package queue delivers job messages to the consumer workers.
//
// Two backends implement the Queue interface: a SQL table in the project
// database (SQLite or PostgreSQL) and Redis lists plus sorted sets. Delivery
// is at-least-once: Dequeue leases a message for a bounded time, workers
// extend the lease while they run, and a message whose lease expires becomes
// visible again. Every delivery increments the message's attempt counter so
// redelivery after a crash counts against the retry budget.
//
// Ack, Retry and DeadLetter take the Delivery returned by Dequeue and fail
// with ErrLeaseLost when another worker has since taken the message over.
// Completed and dead messages are either retained for inspection or purged,
// as chosen by the caller.
package queue
