package project

import "errors"

var (
	// ErrInvalidTransition is returned when a status update would move a job backwards.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrActiveJob is returned when a video already has a queued or processing job.
	ErrActiveJob = errors.New("video already has an active job")
)
