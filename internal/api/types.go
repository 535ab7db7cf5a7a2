package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SourceInfo describes the submitted file as probed at ingest.
type SourceInfo struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Duration   float64 `json:"duration"`
	Size       int64   `json:"size"`
	Format     string  `json:"format"`
	VideoCodec string  `json:"videoCodec"`
	AudioCodec string  `json:"audioCodec,omitempty"`
}

// Rendition is one stored tier.
type Rendition struct {
	Resolution string `json:"resolution"`
	Key        string `json:"key"`
	Bitrate    string `json:"bitrate"`
}

// Video describes a catalog record.
type Video struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description,omitempty"`
	Tags             []string    `json:"tags,omitempty"`
	ConversionStatus string      `json:"conversionStatus"`
	OriginalInfo     SourceInfo  `json:"originalInfo"`
	ThumbnailKey     string      `json:"thumbnailKey,omitempty"`
	DefaultKey       string      `json:"defaultKey,omitempty"`
	Renditions       []Rendition `json:"renditions"`
	ErrorMessage     string      `json:"errorMessage,omitempty"`
	CreatedAt        string      `json:"createdAt,omitempty"`
	UpdatedAt        string      `json:"updatedAt,omitempty"`
}

// Progress is the viewer-facing progress payload.
type Progress struct {
	Status             string `json:"status"`
	Progress           int    `json:"progress"`
	Message            string `json:"message"`
	ActiveResolution   string `json:"activeResolution,omitempty"`
	ResolutionProgress int    `json:"resolutionProgress"`
	CurrentStep        int    `json:"currentStep"`
	TotalSteps         int    `json:"totalSteps"`
	Visible            bool   `json:"visible"`
	QueuePosition      int    `json:"queuePosition"`
	Error              string `json:"error,omitempty"`
	UpdatedAt          string `json:"updatedAt,omitempty"`
}

// QueueStatus summarizes the job queue.
type QueueStatus struct {
	QueueLength       int      `json:"queueLength"`
	CurrentProcessing string   `json:"currentProcessing,omitempty"`
	Queue             []string `json:"queue"`
}

// SubmitRequest is the JSON body for POST /api/videos.
type SubmitRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	SourcePath  string   `json:"sourcePath"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	ID       string   `json:"id"`
	Progress Progress `json:"progress"`
}

// VideoListResponse wraps a collection of videos.
type VideoListResponse struct {
	Videos []Video `json:"videos"`
}

// VideoResponse wraps a single video.
type VideoResponse struct {
	Video Video `json:"video"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
