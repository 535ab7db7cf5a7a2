// Package daemon coordinates the long-running vidqueue process.
//
// It ties the catalog, progress registry, job queue, ingest service and
// artifact store into a single lifecycle guarded by a flock-based lock so only
// one instance owns the work directory. The daemon serves the HTTP API, runs
// the registry retention sweeper, and drains the queue on shutdown.
//
// Keep orchestration here: conversion steps live in pipeline, submission in
// ingest, and the daemon focuses on startup, shutdown, and request routing.
package daemon
