// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//   - Metadata: the flattened source summary stored with a video record
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe
