// Package api defines wire-format types and converters for the daemon's HTTP
// API, plus a small client the CLI uses to call it.
//
// # Key Types
//
// Video: transport representation of a catalog record with its source
// characteristics and stored renditions.
//
// Progress: every field of a progress snapshot, so a viewer can render the
// percentage and active tier and decide whether Visible permits playback
// before completion.
//
// QueueStatus: pending job ids in order plus the job currently running.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use RFC3339
// with milliseconds. Unknown job ids are not an error: the progress endpoint
// returns the sentinel snapshot with status "unknown".
package api
