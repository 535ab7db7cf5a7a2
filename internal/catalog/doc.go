// Package catalog stores video records in SQLite.
//
// A record is created pending when a source is submitted, moves to processing
// when its job is dequeued, and receives one terminal update carrying the
// thumbnail key, the default rendition key and the rendition list. Records
// left pending or processing by a stopped daemon are failed on the next start
// because the in-memory queue does not survive restarts.
package catalog
