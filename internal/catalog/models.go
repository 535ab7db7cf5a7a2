package catalog

import (
	"time"

	"vidqueue/internal/media/ffprobe"
)

// Status is the conversion state stored with a video record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// InterruptedReason is recorded on videos left mid-conversion by a stopped daemon.
const InterruptedReason = "daemon stopped"

// Rendition is one persisted ladder output.
type Rendition struct {
	Resolution string `json:"resolution"`
	Key        string `json:"key"`
	Bitrate    string `json:"bitrate"`
}

// Video is a catalog record.
type Video struct {
	ID           string
	Title        string
	Description  string
	Tags         []string
	SourcePath   string
	Original     ffprobe.Metadata
	Status       Status
	ThumbnailKey string
	DefaultKey   string
	Renditions   []Rendition
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Rendition returns the rendition for a resolution label.
func (v *Video) Rendition(resolution string) (Rendition, bool) {
	if v == nil {
		return Rendition{}, false
	}
	for _, r := range v.Renditions {
		if r.Resolution == resolution {
			return r, true
		}
	}
	return Rendition{}, false
}

// Outcome is the terminal update written once a conversion finishes.
type Outcome struct {
	Status       Status
	ThumbnailKey string
	DefaultKey   string
	Renditions   []Rendition
	ErrorMessage string
}
