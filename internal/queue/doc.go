// Package queue runs transcode jobs one at a time in submission order.
//
// Enqueue appends a job and records a queued snapshot in the progress
// registry. When no job is running, Enqueue starts a drain goroutine that pops
// the head, records processing, runs the job's task to completion, and writes
// the terminal snapshot before moving on. The goroutine exits when the
// sequence is empty and is restarted by the next Enqueue.
//
// A failing or panicking task is converted into a failed snapshot; it never
// stops the drain loop. There is no cancellation of queued or running jobs and
// no automatic retry. Queue also implements progress.Positioner so queued
// snapshots report their live position.
package queue
