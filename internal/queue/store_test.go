package queue_test

import (
	"context"
	"testing"

	"boardcast/internal/queue"
	"boardcast/internal/testsupport"
)

func TestPutAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Put(ctx, &queue.Job{
		ID:        "job_1",
		ChannelID: "ws_demo",
		Status:    queue.StatusUploaded,
		Title:     "morning board",
		Voice:     "ja-JP-Neural2-B",
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be assigned")
	}

	fetched, err := store.Get(ctx, "job_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.Title != "morning board" || fetched.ChannelID != "ws_demo" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}
}

func TestPutUpsertsByIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "job_1", "ws_demo")

	updated, err := store.Put(ctx, &queue.Job{
		ID:        "job_1",
		ChannelID: "ws_demo",
		Status:    queue.StatusAnalyzing,
		Progress:  queue.ProgressAnalyzing,
	})
	if err != nil {
		t.Fatalf("Put update failed: %v", err)
	}
	if updated.Status != queue.StatusAnalyzing || updated.Progress != 10 {
		t.Fatalf("upsert did not apply: %#v", updated)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected a single job after upsert, got %d", len(jobs))
	}
}

func TestPutValidatesIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.Put(ctx, &queue.Job{ChannelID: "ws_demo"}); err == nil {
		t.Fatal("expected error for empty job id")
	}
	if _, err := store.Put(ctx, &queue.Job{ID: "job_1"}); err == nil {
		t.Fatal("expected error for empty channel id")
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for missing job, got %#v", job)
	}
}

func TestListChannelScopesResults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "job_a", "ws_one")
	testsupport.NewJob(t, store, "job_b", "ws_two")
	testsupport.NewJob(t, store, "job_c", "ws_one")

	jobs, err := store.ListChannel(ctx, "ws_one")
	if err != nil {
		t.Fatalf("ListChannel failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs for ws_one, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.ChannelID != "ws_one" {
			t.Fatalf("job %s leaked from channel %s", job.ID, job.ChannelID)
		}
	}
}

func TestRemoveDeletesJobAndResultTogether(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "job_1", "ws_demo")
	if err := store.PutResult(ctx, &queue.Result{
		JobID:       "job_1",
		ChannelID:   "ws_demo",
		Narration:   "script",
		AudioFile:   "job_1.mp3",
		DurationSec: 60,
	}); err != nil {
		t.Fatalf("PutResult failed: %v", err)
	}

	removed, err := store.Remove(ctx, "job_1")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to report true")
	}

	job, err := store.Get(ctx, "job_1")
	if err != nil {
		t.Fatalf("Get after remove failed: %v", err)
	}
	if job != nil {
		t.Fatal("job still present after remove")
	}
	result, err := store.GetResult(ctx, "job_1")
	if err != nil {
		t.Fatalf("GetResult after remove failed: %v", err)
	}
	if result != nil {
		t.Fatal("result still present after remove")
	}

	// Second remove reports not found, never an error.
	removed, err = store.Remove(ctx, "job_1")
	if err != nil {
		t.Fatalf("second Remove failed: %v", err)
	}
	if removed {
		t.Fatal("second remove should report false")
	}
}

func TestPutResultOverwrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := &queue.Result{JobID: "job_1", ChannelID: "ws_demo", Narration: "old", AudioFile: "job_1.mp3", DurationSec: 45}
	if err := store.PutResult(ctx, first); err != nil {
		t.Fatalf("PutResult failed: %v", err)
	}
	second := &queue.Result{JobID: "job_1", ChannelID: "ws_demo", Narration: "new", AudioFile: "job_1.mp3", DurationSec: 62}
	if err := store.PutResult(ctx, second); err != nil {
		t.Fatalf("PutResult overwrite failed: %v", err)
	}

	result, err := store.GetResult(ctx, "job_1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if result == nil || result.Narration != "new" || result.DurationSec != 62 {
		t.Fatalf("overwrite not applied: %#v", result)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	if _, err := store.Put(ctx, &queue.Job{
		ID:        "job_1",
		ChannelID: "ws_demo",
		Status:    queue.StatusDone,
		Progress:  queue.ProgressDone,
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	job, err := reopened.Get(ctx, "job_1")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if job == nil || job.Status != queue.StatusDone {
		t.Fatalf("state lost across reopen: %#v", job)
	}
}

func TestFreshDatabaseIsEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List on fresh db failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty job list, got %d", len(jobs))
	}
	result, err := store.GetResult(ctx, "anything")
	if err != nil {
		t.Fatalf("GetResult on fresh db failed: %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on fresh db")
	}
}

func TestStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "job_1", "ws_demo")
	testsupport.NewJob(t, store, "job_2", "ws_demo")
	if _, err := store.Put(ctx, &queue.Job{ID: "job_3", ChannelID: "ws_demo", Status: queue.StatusError}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusUploaded] != 2 || stats[queue.StatusError] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in    string
		want  queue.Status
		valid bool
	}{
		{"uploaded", queue.StatusUploaded, true},
		{" Done ", queue.StatusDone, true},
		{"ERROR", queue.StatusError, true},
		{"deleted", "", false}, // synthetic, never persisted
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseStatus(tc.in)
		if ok != tc.valid {
			t.Fatalf("ParseStatus(%q) validity = %v, want %v", tc.in, ok, tc.valid)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
