// Package notifications delivers job outcome events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the consumer can publish unconditionally. Each event is gated by its
// config toggle.
package notifications
