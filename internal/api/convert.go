package api

import (
	"time"

	"vidqueue/internal/catalog"
	"vidqueue/internal/progress"
	"vidqueue/internal/queue"
)

// FromVideo converts a catalog record to its API representation.
func FromVideo(video *catalog.Video) Video {
	if video == nil {
		return Video{}
	}
	dto := Video{
		ID:               video.ID,
		Title:            video.Title,
		Description:      video.Description,
		Tags:             video.Tags,
		ConversionStatus: string(video.Status),
		OriginalInfo: SourceInfo{
			Width:      video.Original.Width,
			Height:     video.Original.Height,
			Duration:   video.Original.DurationSeconds,
			Size:       video.Original.SizeBytes,
			Format:     video.Original.FormatName,
			VideoCodec: video.Original.VideoCodec,
			AudioCodec: video.Original.AudioCodec,
		},
		ThumbnailKey: video.ThumbnailKey,
		DefaultKey:   video.DefaultKey,
		Renditions:   make([]Rendition, 0, len(video.Renditions)),
		ErrorMessage: video.ErrorMessage,
		CreatedAt:    formatTime(video.CreatedAt),
		UpdatedAt:    formatTime(video.UpdatedAt),
	}
	for _, r := range video.Renditions {
		dto.Renditions = append(dto.Renditions, Rendition(r))
	}
	return dto
}

// FromVideos converts a slice of catalog records.
func FromVideos(videos []*catalog.Video) []Video {
	out := make([]Video, 0, len(videos))
	for _, video := range videos {
		out = append(out, FromVideo(video))
	}
	return out
}

// FromSnapshot converts a progress snapshot.
func FromSnapshot(snap progress.Snapshot) Progress {
	return Progress{
		Status:             string(snap.Status),
		Progress:           snap.Progress,
		Message:            snap.Message,
		ActiveResolution:   snap.ActiveResolution,
		ResolutionProgress: snap.ResolutionProgress,
		CurrentStep:        snap.CurrentStep,
		TotalSteps:         snap.TotalSteps,
		Visible:            snap.Visible,
		QueuePosition:      snap.QueuePosition,
		Error:              snap.Error,
		UpdatedAt:          formatTime(snap.UpdatedAt),
	}
}

// FromQueueSnapshot converts the queue status.
func FromQueueSnapshot(s queue.Snapshot) QueueStatus {
	pending := s.Pending
	if pending == nil {
		pending = []string{}
	}
	return QueueStatus{
		QueueLength:       s.Length,
		CurrentProcessing: s.Current,
		Queue:             pending,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
