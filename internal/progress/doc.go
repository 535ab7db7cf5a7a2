// Package progress holds the externally pollable table of job snapshots.
//
// One actor (the running pipeline, then the queue when it records the
// outcome) writes a job's snapshot while any number of HTTP pollers read it.
// Every write replaces the whole value; there is no field-level mutation
// visible to readers. Unknown identifiers read back as a sentinel rather than
// an error, and terminal snapshots are evicted after a retention window.
package progress
