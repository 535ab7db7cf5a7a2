// Package encoding adapts ffmpeg into the single-tier encoder used by the
// transcode pipeline.
//
// An Encode call launches one ffmpeg invocation and returns a Stream, a
// one-pass, pull-based sequence of percent events that ends either with an
// Artifact or an error carrying ffmpeg's stderr tail. Codec, frame rate,
// display aspect, and threading knobs come from configuration and do not
// affect the queue contract. Probe is the companion metadata lookup used at
// submission time.
package encoding
