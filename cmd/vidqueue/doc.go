// Package main hosts the vidqueue CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API, runs the daemon in the foreground, probes
// local media, prints preflight results, and scaffolds configuration. It
// centralizes configuration resolution and API address discovery so
// subcommands can focus on output instead of wiring.
package main
