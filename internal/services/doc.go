// Package services defines shared utilities consumed by the transcode
// pipeline, the ingest flow, and the external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification from the adapter up to the API layer.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
