package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"boardcast/internal/api"
	"boardcast/internal/config"
	"boardcast/internal/fileutil"
	"boardcast/internal/logging"
	"boardcast/internal/notify"
	"boardcast/internal/queue"
	"boardcast/internal/services/vision"
)

// Sentinel errors surfaced to API callers.
var (
	ErrNotFound       = errors.New("job not found")
	ErrAlreadyRunning = errors.New("job is already running")
	ErrNotRetryable   = errors.New("job is not in error state")
)

// Store is the slice of the queue store the runner persists through.
type Store interface {
	Get(ctx context.Context, id string) (*queue.Job, error)
	Put(ctx context.Context, job *queue.Job) (*queue.Job, error)
	Remove(ctx context.Context, id string) (bool, error)
	PutResult(ctx context.Context, result *queue.Result) error
}

// VisionClient analyzes a board photo and returns the model's response text.
type VisionClient interface {
	Describe(ctx context.Context, imagePath, model string) (string, error)
	FallbackModel() string
}

// SpeechClient renders narration text into MP3 bytes.
type SpeechClient interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	DefaultVoice() string
}

// Runner drives jobs through the narration state machine. Each job runs in
// its own goroutine; a per-job guard rejects a second concurrent run.
type Runner struct {
	ctx       context.Context
	store     Store
	vision    VisionClient
	speech    SpeechClient
	publisher notify.Publisher
	logger    *slog.Logger

	audioDir    string
	maxAttempts int
	retryBase   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// Option customizes the runner.
type Option func(*Runner)

// WithSleeper overrides how retry backoff sleeps are performed.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// New constructs a runner. Runs launched later are bound to ctx, so canceling
// it stops in-flight pipeline work.
func New(ctx context.Context, store Store, visionClient VisionClient, speechClient SpeechClient, publisher notify.Publisher, cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	if publisher == nil {
		publisher = notify.Nop()
	}
	maxAttempts := cfg.Vision.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryBase := time.Duration(cfg.Vision.RetryBaseSeconds) * time.Second
	if retryBase <= 0 {
		retryBase = 2 * time.Second
	}
	r := &Runner{
		ctx:         ctx,
		store:       store,
		vision:      visionClient,
		speech:      speechClient,
		publisher:   publisher,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		audioDir:    cfg.Paths.AudioDir,
		maxAttempts: maxAttempts,
		retryBase:   retryBase,
		inFlight:    make(map[string]struct{}),
	}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit records a new uploaded job and schedules its run. Missing fields are
// defaulted: id to a fresh UUID, voice to the speech client's default.
func (r *Runner) Submit(ctx context.Context, job *queue.Job) (*queue.Job, error) {
	if job == nil {
		return nil, errors.New("submit: job required")
	}
	if strings.TrimSpace(job.ChannelID) == "" {
		return nil, errors.New("submit: channel id required")
	}
	if strings.TrimSpace(job.InputPath) == "" {
		return nil, errors.New("submit: input path required")
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if strings.TrimSpace(job.Voice) == "" {
		job.Voice = r.speech.DefaultVoice()
	}
	if err := r.reserve(job.ID); err != nil {
		return nil, err
	}
	stored, err := r.transition(ctx, job, queue.StatusUploaded, queue.ProgressUploaded)
	if err != nil {
		r.release(job.ID)
		return nil, err
	}
	r.launch(stored)
	return stored, nil
}

// Retry resets a failed job and schedules a fresh run. Only jobs in the error
// state are retryable; a job whose run is still executing is rejected.
func (r *Runner) Retry(ctx context.Context, id string) (*queue.Job, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	if job.Status != queue.StatusError {
		return nil, fmt.Errorf("%w: status %s", ErrNotRetryable, job.Status)
	}
	if err := r.reserve(id); err != nil {
		return nil, err
	}
	stored, err := r.transition(ctx, job, queue.StatusUploaded, queue.ProgressUploaded)
	if err != nil {
		r.release(id)
		return nil, err
	}
	r.launch(stored)
	return stored, nil
}

// Rename updates a job's title and notifies viewers.
func (r *Runner) Rename(ctx context.Context, id, title string) (*queue.Job, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	job.Title = strings.TrimSpace(title)
	return r.transition(ctx, job, job.Status, job.Progress)
}

// Delete removes a job, its result row, and its audio file, then publishes a
// synthetic deleted event. Deleting a missing job reports false, nil.
func (r *Runner) Delete(ctx context.Context, id string) (bool, error) {
	job, err := r.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	removed, err := r.store.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	audioPath := filepath.Join(r.audioDir, id+".mp3")
	if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("audio cleanup failed",
			logging.Error(err),
			logging.String(logging.FieldJobID, id),
			logging.String("path", audioPath),
		)
	}

	view := api.FromJob(job)
	view.Status = string(queue.StatusDeleted)
	view.Progress = 0
	r.publish(ctx, job.ChannelID, view)
	r.logger.Info("job deleted",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldChannel, job.ChannelID),
	)
	return true, nil
}

// Running reports whether a job's run is currently executing.
func (r *Runner) Running(id string) bool {
	return r.running(id)
}

// Wait blocks until all launched runs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) running(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[id]
	return ok
}

// reserve claims the per-job run slot before any state is written, so a
// duplicate submission cannot disturb a run already in progress.
func (r *Runner) reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[id]; ok {
		return ErrAlreadyRunning
	}
	r.inFlight[id] = struct{}{}
	return nil
}

func (r *Runner) release(id string) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

// launch starts the run goroutine for a job whose slot is already reserved.
func (r *Runner) launch(job *queue.Job) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(job.ID)
		r.run(r.ctx, job)
	}()
}

// run executes one full pipeline pass. It always leaves the job in a
// terminal state; panics are recovered and converted to an error transition.
func (r *Runner) run(ctx context.Context, job *queue.Job) {
	logger := r.logger.With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldChannel, job.ChannelID),
	)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("pipeline panic",
				logging.Any("panic", rec),
				logging.String(logging.FieldEventType, "pipeline_panic"),
			)
			r.fail(ctx, job)
		}
	}()

	logger.Info("run started", logging.String("input", job.InputPath))

	if _, err := os.Stat(job.InputPath); err != nil {
		logger.Error("input image unavailable", logging.Error(err))
		r.fail(ctx, job)
		return
	}

	if _, err := r.transition(ctx, job, queue.StatusAnalyzing, queue.ProgressAnalyzing); err != nil {
		logger.Error("analyzing transition failed", logging.Error(err))
		r.fail(ctx, job)
		return
	}

	text, err := r.describeWithRetry(ctx, job, logger)
	if err != nil {
		logger.Error("vision analysis failed", logging.Error(err))
		r.fail(ctx, job)
		return
	}
	script := vision.ExtractScript(text)

	if _, err := r.transition(ctx, job, queue.StatusNarrating, queue.ProgressNarrating); err != nil {
		logger.Error("narrating transition failed", logging.Error(err))
		r.fail(ctx, job)
		return
	}

	audio, err := r.speech.Synthesize(ctx, script, job.Voice)
	if err != nil {
		logger.Error("speech synthesis failed", logging.Error(err))
		r.fail(ctx, job)
		return
	}

	audioFile := job.ID + ".mp3"
	audioPath := filepath.Join(r.audioDir, audioFile)
	if err := fileutil.WriteFileAtomic(audioPath, audio, 0o644); err != nil {
		logger.Error("audio write failed", logging.Error(err), logging.String("path", audioPath))
		r.fail(ctx, job)
		return
	}

	result := &queue.Result{
		JobID:       job.ID,
		ChannelID:   job.ChannelID,
		Narration:   text,
		AudioFile:   audioFile,
		DurationSec: approximateDuration(script),
	}
	if err := r.store.PutResult(ctx, result); err != nil {
		logger.Error("result write failed", logging.Error(err))
		r.fail(ctx, job)
		return
	}

	if _, err := r.transition(ctx, job, queue.StatusDone, queue.ProgressDone); err != nil {
		logger.Error("done transition failed", logging.Error(err))
		r.fail(ctx, job)
		return
	}
	logger.Info("run completed",
		logging.String("audio", audioFile),
		logging.Int("duration_sec", result.DurationSec),
	)
}

// describeWithRetry runs the vision call with linear backoff. The final
// attempt switches to the fallback model when one is configured.
func (r *Runner) describeWithRetry(ctx context.Context, job *queue.Job, logger *slog.Logger) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		model := ""
		if attempt == r.maxAttempts {
			model = r.vision.FallbackModel()
		}
		text, err := r.vision.Describe(ctx, job.InputPath, model)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logger.Warn("vision attempt failed",
			logging.Error(err),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", r.maxAttempts),
		)
		if attempt == r.maxAttempts {
			break
		}
		if err := r.sleep(ctx, time.Duration(attempt)*r.retryBase); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("vision analysis: failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// fail moves a job to the error state. The cause stays in the log; the store
// only records the state.
func (r *Runner) fail(ctx context.Context, job *queue.Job) {
	if _, err := r.transition(ctx, job, queue.StatusError, queue.ProgressUploaded); err != nil {
		r.logger.Error("error transition failed",
			logging.Error(err),
			logging.String(logging.FieldJobID, job.ID),
		)
	}
}

// transition persists a state change and then notifies the job's channel.
// Notification failures are logged and swallowed so pipeline progress never
// depends on viewer delivery.
func (r *Runner) transition(ctx context.Context, job *queue.Job, status queue.Status, progress int) (*queue.Job, error) {
	job.Status = status
	job.Progress = progress
	stored, err := r.store.Put(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("store %s transition: %w", status, err)
	}
	*job = *stored
	r.publish(ctx, stored.ChannelID, api.FromJob(stored))
	return stored, nil
}

func (r *Runner) publish(ctx context.Context, channelID string, view api.JobView) {
	if err := r.publisher.Publish(ctx, channelID, view); err != nil {
		r.logger.Debug("notification publish failed",
			logging.Error(err),
			logging.String(logging.FieldChannel, channelID),
			logging.String(logging.FieldJobID, view.JobID),
		)
	}
}

// approximateDuration estimates spoken length from script size, assuming a
// calm reading pace of about six characters per second.
func approximateDuration(script string) int {
	runes := len([]rune(strings.TrimSpace(script)))
	if runes == 0 {
		return 0
	}
	seconds := runes / 6
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
