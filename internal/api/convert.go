package api

import (
	"time"

	"boardcast/internal/queue"
)

// FromJob converts a stored job into its wire representation.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		JobID:     job.ID,
		ChannelID: job.ChannelID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Title:     job.Title,
		Voice:     job.Voice,
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !job.UpdatedAt.IsZero() {
		view.UpdatedAt = job.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return view
}

// FromJobs converts a job slice, preserving order.
func FromJobs(jobs []*queue.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		views = append(views, FromJob(job))
	}
	return views
}

// FromResult converts a stored result; audioURL is the externally reachable
// location of the synthesized audio.
func FromResult(result *queue.Result, audioURL string) ResultView {
	if result == nil {
		return ResultView{}
	}
	return ResultView{
		JobID:       result.JobID,
		ChannelID:   result.ChannelID,
		Narration:   result.Narration,
		AudioURL:    audioURL,
		DurationSec: result.DurationSec,
	}
}
