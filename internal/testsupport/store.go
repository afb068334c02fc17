package testsupport

import (
	"context"
	"testing"

	"boardcast/internal/config"
	"boardcast/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob persists a fresh uploaded job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, id, channelID string) *queue.Job {
	t.Helper()

	job, err := store.Put(context.Background(), &queue.Job{
		ID:        id,
		ChannelID: channelID,
		Status:    queue.StatusUploaded,
		Progress:  queue.ProgressUploaded,
	})
	if err != nil {
		t.Fatalf("store.Put: %v", err)
	}
	return job
}
