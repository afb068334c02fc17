package main

import (
	"context"
	"time"

	"log/slog"

	"boardcast/internal/api"
	"boardcast/internal/config"
	"boardcast/internal/daemon"
	"boardcast/internal/gateway"
	"boardcast/internal/hub"
	"boardcast/internal/notify"
	"boardcast/internal/pipeline"
	"boardcast/internal/queue"
	"boardcast/internal/services/speech"
	"boardcast/internal/services/vision"
)

// buildDaemon wires the store, pipeline, hub, and gateway together. With no
// notify endpoint configured the pipeline publishes straight into the local
// hub; otherwise updates go over HTTP so a separate gateway process can fan
// them out.
func buildDaemon(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	snapshot := func(ctx context.Context, channelID string) ([]api.JobView, error) {
		jobs, err := store.ListChannel(ctx, channelID)
		if err != nil {
			return nil, err
		}
		return api.FromJobs(jobs), nil
	}
	h := hub.New(snapshot, logger)
	gw := gateway.New(h, logger)

	var publisher notify.Publisher
	if endpoint := cfg.Notify.Endpoint; endpoint != "" {
		timeout := time.Duration(cfg.Notify.TimeoutSeconds) * time.Second
		publisher = notify.NewHTTP(endpoint, timeout, logger)
	} else {
		publisher = notify.Func(func(_ context.Context, channelID string, job api.JobView) error {
			h.Publish(channelID, job)
			return nil
		})
	}

	visionClient := vision.NewClient(vision.Config{
		APIKey:         cfg.Vision.APIKey,
		BaseURL:        cfg.Vision.BaseURL,
		Model:          cfg.Vision.Model,
		FallbackModel:  cfg.Vision.FallbackModel,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
	})
	speechClient := speech.NewClient(speech.Config{
		APIKey:         cfg.Speech.APIKey,
		BaseURL:        cfg.Speech.BaseURL,
		Voice:          cfg.Speech.Voice,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
	})

	runner := pipeline.New(ctx, store, visionClient, speechClient, publisher, cfg, logger)
	return daemon.New(cfg, store, runner, h, gw, logger)
}
