// Package pipeline converts one submitted video into a thumbnail plus a
// ladder of renditions.
//
// Stages run strictly in order: thumbnail, then each tier lowest first. Every
// encoder event becomes a whole-snapshot write to the progress registry with
// overall progress floor((completed*100 + tierPercent) / tiers). The first
// finished tier flips Visible, which never goes back to false. Each artifact is
// handed to the store as soon as it exists and its local copy is removed once
// stored; the source file is removed only after every handoff succeeded.
//
// An encode failure stops the job. Renditions already stored stay in the
// catalog, which records the video as failed.
package pipeline
