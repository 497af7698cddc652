// Package project owns the persistent job and video records.
//
// Jobs move monotonically through QUEUED, PROCESSING and one of the terminal
// states; the store refuses backward transitions with a compare-and-set on
// the stored status. A video holds at most one active job, enforced both by a
// conditional claim on videos.current_job_id and by a partial unique index.
// Video versions are only ever written as version + 1. Storyboards carry the
// ordered scene list whose numbers must be contiguous from 1.
package project
