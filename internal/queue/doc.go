// Package queue persists narration jobs and their results in SQLite. It is
// the single source of truth for job state: the pipeline writes transitions
// here before any viewer is notified, so state survives a process restart.
package queue
