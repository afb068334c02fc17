package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"boardcast/internal/config"
)

// Store manages job and result persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "boardcast.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

const jobColumns = "job_id, channel_id, status, progress, title, voice, input_path, created_at, updated_at"

// Put upserts a job by identity and returns the stored value.
func (s *Store) Put(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	if strings.TrimSpace(job.ID) == "" {
		return nil, errors.New("job id must not be empty")
	}
	if strings.TrimSpace(job.ChannelID) == "" {
		return nil, errors.New("channel id must not be empty")
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
             channel_id = excluded.channel_id,
             status = excluded.status,
             progress = excluded.progress,
             title = excluded.title,
             voice = excluded.voice,
             input_path = excluded.input_path,
             updated_at = excluded.updated_at`,
		job.ID,
		job.ChannelID,
		string(job.Status),
		job.Progress,
		nullableString(job.Title),
		nullableString(job.Voice),
		nullableString(job.InputPath),
		job.CreatedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("put job: %w", err)
	}
	return s.Get(ctx, job.ID)
}

// Get fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns all jobs ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListChannel returns the jobs belonging to a channel ordered by creation time.
func (s *Store) ListChannel(ctx context.Context, channelID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE channel_id = ? ORDER BY created_at`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("list channel jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Remove deletes a job and its result in one transaction so readers never
// observe one without the other. Returns false when the job does not exist.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin remove tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE job_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit remove: %w", err)
	}
	return affected > 0, nil
}

// PutResult upserts a completed-run result by job identity.
func (s *Store) PutResult(ctx context.Context, result *Result) error {
	if result == nil {
		return errors.New("result is nil")
	}
	if strings.TrimSpace(result.JobID) == "" {
		return errors.New("result job id must not be empty")
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO results (job_id, channel_id, narration, audio_file, duration_sec, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO UPDATE SET
             channel_id = excluded.channel_id,
             narration = excluded.narration,
             audio_file = excluded.audio_file,
             duration_sec = excluded.duration_sec,
             created_at = excluded.created_at`,
		result.JobID,
		result.ChannelID,
		result.Narration,
		result.AudioFile,
		result.DurationSec,
		result.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put result: %w", err)
	}
	return nil
}

// GetResult fetches a result by job identifier. A missing result returns (nil, nil).
func (s *Store) GetResult(ctx context.Context, jobID string) (*Result, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT job_id, channel_id, narration, audio_file, duration_sec, created_at
         FROM results WHERE job_id = ?`,
		jobID,
	)
	var (
		result     Result
		createdRaw string
	)
	err := row.Scan(
		&result.JobID,
		&result.ChannelID,
		&result.Narration,
		&result.AudioFile,
		&result.DurationSec,
		&createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	if created, parseErr := time.Parse(time.RFC3339Nano, createdRaw); parseErr == nil {
		result.CreatedAt = created
	}
	return &result, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id         string
		channelID  string
		statusStr  string
		progress   int
		title      sql.NullString
		voice      sql.NullString
		inputPath  sql.NullString
		createdRaw string
		updatedRaw string
	)

	if err := scanner.Scan(
		&id,
		&channelID,
		&statusStr,
		&progress,
		&title,
		&voice,
		&inputPath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		ChannelID: channelID,
		Status:    Status(statusStr),
		Progress:  progress,
		Title:     title.String,
		Voice:     voice.String,
		InputPath: inputPath.String,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
