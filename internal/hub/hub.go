package hub

import (
	"context"
	"log/slog"
	"sync"

	"boardcast/internal/api"
	"boardcast/internal/logging"
)

// Conn is one viewer connection. Implementations must serialize their own
// writes; Ready reports whether the connection can currently accept a send.
type Conn interface {
	WriteJSON(v any) error
	Ready() bool
}

// SnapshotMessage is sent once per new subscription.
type SnapshotMessage struct {
	Type string        `json:"type"`
	Jobs []api.JobView `json:"jobs"`
}

// UpdateMessage is sent on every job state transition, including the
// synthetic deleted event.
type UpdateMessage struct {
	Type string      `json:"type"`
	Job  api.JobView `json:"job"`
}

// Message type discriminators of the push protocol.
const (
	TypeSnapshot = "snapshot"
	TypeUpdate   = "job_update"
)

// SnapshotFunc produces the current job list for a channel, used to seed new
// subscribers.
type SnapshotFunc func(ctx context.Context, channelID string) ([]api.JobView, error)

// Hub maintains the per-channel sets of connected viewers and fans job
// updates out to them. Delivery is best-effort at-most-once; a reconnecting
// viewer reconciles through the snapshot it receives on subscribe.
type Hub struct {
	snapshot SnapshotFunc
	logger   *slog.Logger

	mu       sync.Mutex
	channels map[string]map[Conn]struct{}
}

// New constructs a hub seeded by the given snapshot source.
func New(snapshot SnapshotFunc, logger *slog.Logger) *Hub {
	return &Hub{
		snapshot: snapshot,
		logger:   logging.NewComponentLogger(logger, "hub"),
		channels: make(map[string]map[Conn]struct{}),
	}
}

// Subscribe registers a connection under a channel and immediately sends it a
// full snapshot of that channel's jobs.
func (h *Hub) Subscribe(ctx context.Context, channelID string, conn Conn) error {
	h.mu.Lock()
	set, ok := h.channels[channelID]
	if !ok {
		set = make(map[Conn]struct{})
		h.channels[channelID] = set
	}
	set[conn] = struct{}{}
	h.mu.Unlock()

	var jobs []api.JobView
	if h.snapshot != nil {
		var err error
		jobs, err = h.snapshot(ctx, channelID)
		if err != nil {
			h.logger.Warn("snapshot load failed; sending empty snapshot",
				logging.Error(err),
				logging.String(logging.FieldChannel, channelID),
				logging.String(logging.FieldEventType, "snapshot_failed"),
			)
			jobs = nil
		}
	}
	if jobs == nil {
		jobs = []api.JobView{}
	}
	if err := conn.WriteJSON(SnapshotMessage{Type: TypeSnapshot, Jobs: jobs}); err != nil {
		h.logger.Debug("snapshot send failed",
			logging.Error(err),
			logging.String(logging.FieldChannel, channelID),
		)
	}
	return nil
}

// Unsubscribe removes a connection from a channel. Safe to call twice; the
// channel entry is discarded once its last connection is gone.
func (h *Hub) Unsubscribe(channelID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channelID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.channels, channelID)
	}
}

// Publish sends an incremental update to every open connection on the
// channel and returns the number of deliveries attempted. Connections that
// are not ready are skipped without error.
func (h *Hub) Publish(channelID string, job api.JobView) int {
	h.mu.Lock()
	set := h.channels[channelID]
	conns := make([]Conn, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	msg := UpdateMessage{Type: TypeUpdate, Job: job}
	delivered := 0
	for _, conn := range conns {
		if !conn.Ready() {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("update send failed",
				logging.Error(err),
				logging.String(logging.FieldChannel, channelID),
				logging.String(logging.FieldJobID, job.JobID),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// Subscribers returns the number of connections currently registered across
// all channels.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, set := range h.channels {
		total += len(set)
	}
	return total
}

// ChannelCount returns the number of channels with at least one connection.
func (h *Hub) ChannelCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}
