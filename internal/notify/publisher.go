package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"boardcast/internal/api"
	"boardcast/internal/logging"
)

// Message is the wire payload the worker side sends to the gateway after
// every job state write.
type Message struct {
	ChannelID string      `json:"channel_id"`
	Job       api.JobView `json:"job"`
}

// Publisher bridges the "job changed" signal from the pipeline and store to
// the viewer-facing gateway. Delivery is best-effort: a failed publish must
// never fail the state write that triggered it, so callers log and swallow
// the returned error.
type Publisher interface {
	Publish(ctx context.Context, channelID string, job api.JobView) error
}

// Func adapts a plain function to the Publisher interface.
type Func func(ctx context.Context, channelID string, job api.JobView) error

func (f Func) Publish(ctx context.Context, channelID string, job api.JobView) error {
	return f(ctx, channelID, job)
}

// Nop returns a publisher that discards every notification.
func Nop() Publisher {
	return Func(func(context.Context, string, api.JobView) error { return nil })
}

// HTTPPublisher posts job updates to a gateway notification endpoint. It is
// the cross-process form of the bridge: the pipeline may run in a different
// process than the gateway serving viewers.
type HTTPPublisher struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTP builds a publisher targeting the given notification endpoint.
func NewHTTP(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPublisher{
		endpoint: strings.TrimSpace(endpoint),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notify"),
	}
}

// Publish sends one update. Failures are logged and returned; callers are
// expected to swallow them.
func (p *HTTPPublisher) Publish(ctx context.Context, channelID string, job api.JobView) error {
	if p == nil || p.endpoint == "" {
		return nil
	}
	body, err := json.Marshal(Message{ChannelID: channelID, Job: job})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("notification delivery failed",
			logging.Error(err),
			logging.String(logging.FieldChannel, channelID),
			logging.String(logging.FieldJobID, job.JobID),
			logging.String(logging.FieldEventType, "notify_failed"),
		)
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
		p.logger.Debug("notification rejected",
			logging.Error(err),
			logging.String(logging.FieldChannel, channelID),
			logging.String(logging.FieldJobID, job.JobID),
			logging.String(logging.FieldEventType, "notify_rejected"),
		)
		return err
	}
	return nil
}
