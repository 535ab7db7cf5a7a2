// Package storage persists finished artifacts and resolves viewer URLs.
//
// The local backend copies files under a directory that the daemon serves at
// /files/. The MinIO backend uploads into a bucket and hands out presigned GET
// URLs. Put returns only after the bytes are durable in the backend, so the
// caller may delete its local copy once Put succeeds.
package storage
