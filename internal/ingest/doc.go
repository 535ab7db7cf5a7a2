// Package ingest accepts new source videos.
//
// Submit validates the request, probes the source so unreadable files are
// rejected before anything is queued, stages a private copy under the upload
// directory, records a pending catalog entry, and enqueues the conversion job.
// Outcomes after that point are observed through the progress registry.
package ingest
