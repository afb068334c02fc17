package api

// JobView is the wire representation of a job shared by the HTTP API and the
// push protocol.
type JobView struct {
	JobID     string `json:"job_id"`
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Title     string `json:"title,omitempty"`
	Voice     string `json:"voice,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ResultView is the wire representation of a completed job's output.
type ResultView struct {
	JobID       string `json:"job_id"`
	ChannelID   string `json:"channel_id"`
	Narration   string `json:"narration"`
	AudioURL    string `json:"audio_url"`
	DurationSec int    `json:"duration_sec"`
}

// SubmitRequest schedules a pipeline run for an uploaded board photo.
type SubmitRequest struct {
	JobID     string `json:"job_id,omitempty"`
	ChannelID string `json:"channel_id"`
	InputRef  string `json:"input_ref"`
	Title     string `json:"title,omitempty"`
	VoiceID   string `json:"voice_id,omitempty"`
}

// SubmitResponse reports the accepted job identity.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// JobListResponse contains jobs for a channel or the whole store.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// RenameRequest updates a job's display title.
type RenameRequest struct {
	Title string `json:"title"`
}

// StatusResponse summarizes daemon state for the CLI.
type StatusResponse struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	DBPath     string         `json:"db_path"`
	JobStats   map[string]int `json:"job_stats"`
	Subscriber int            `json:"subscribers"`
}

// ErrorResponse carries a machine-readable failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
