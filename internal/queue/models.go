package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a narration job.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusAnalyzing Status = "analyzing"
	StatusNarrating Status = "narrating"
	StatusDone      Status = "done"
	StatusError     Status = "error"

	// StatusDeleted is a synthetic event status pushed to viewers when a job
	// is removed. It is never persisted.
	StatusDeleted Status = "deleted"
)

// Progress checkpoints for each lifecycle state.
const (
	ProgressUploaded  = 0
	ProgressAnalyzing = 10
	ProgressNarrating = 50
	ProgressDone      = 100
)

var allStatuses = []Status{
	StatusUploaded,
	StatusAnalyzing,
	StatusNarrating,
	StatusDone,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of persisted statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known persisted Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends a pipeline run.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// Job is one submitted board photo tracked through the pipeline.
type Job struct {
	ID        string
	ChannelID string
	Status    Status
	Progress  int
	Title     string
	Voice     string
	InputPath string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result is the durable output of a successful pipeline run.
type Result struct {
	JobID       string
	ChannelID   string
	Narration   string
	AudioFile   string
	DurationSec int
	CreatedAt   time.Time
}
