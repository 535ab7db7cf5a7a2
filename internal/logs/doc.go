// Package logs tails the daemon log file for the CLI.
//
// It reads with bounded memory, supports negative offsets for "last N lines"
// requests, and polls for appended lines in follow mode until the caller's
// context ends. An optional matcher narrows output to one job.
package logs
