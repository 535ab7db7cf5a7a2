package progress

import "time"

// Status is the lifecycle state reported for a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

// Terminal reports whether the status is final for a job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UnknownMessage is the message carried by the sentinel snapshot.
const UnknownMessage = "no status info"

// Snapshot is the full progress record for one job at a point in time. It is
// always stored and returned by value.
type Snapshot struct {
	Status             Status    `json:"status"`
	Progress           int       `json:"progress"`
	Message            string    `json:"message"`
	ActiveResolution   string    `json:"activeResolution,omitempty"`
	ResolutionProgress int       `json:"resolutionProgress"`
	CurrentStep        int       `json:"currentStep"`
	TotalSteps         int       `json:"totalSteps"`
	Visible            bool      `json:"visible"`
	QueuePosition      int       `json:"queuePosition"`
	Error              string    `json:"error,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Unknown returns the sentinel snapshot for identifiers with no record.
func Unknown() Snapshot {
	return Snapshot{Status: StatusUnknown, Message: UnknownMessage}
}
