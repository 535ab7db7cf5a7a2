// Package thumbnail extracts the preview image shown before playback.
package thumbnail
