package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"boardcast/internal/hub"
	"boardcast/internal/logging"
	"boardcast/internal/notify"
)

const writeTimeout = 10 * time.Second

// Gateway terminates viewer WebSocket sessions and receives cross-process
// update notifications, fanning both into the hub.
type Gateway struct {
	hub      *hub.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New builds a gateway backed by the given hub.
func New(h *hub.Hub, logger *slog.Logger) *Gateway {
	return &Gateway{
		hub:    h,
		logger: logging.NewComponentLogger(logger, "gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Viewers connect from local tooling; origin checks stay open.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the gateway endpoints on the mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", g.handleSocket)
	mux.HandleFunc("/internal/notify", g.handleNotify)
}

func (g *Gateway) handleSocket(w http.ResponseWriter, r *http.Request) {
	channelID := strings.TrimSpace(r.URL.Query().Get("channel_id"))
	if channelID == "" {
		http.Error(w, "channel_id query parameter is required", http.StatusBadRequest)
		return
	}

	raw, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed",
			logging.Error(err),
			logging.String(logging.FieldChannel, channelID),
		)
		return
	}

	conn := newSocketConn(raw)
	if err := g.hub.Subscribe(r.Context(), channelID, conn); err != nil {
		g.logger.Warn("subscribe failed",
			logging.Error(err),
			logging.String(logging.FieldChannel, channelID),
		)
		conn.close()
		return
	}
	g.logger.Info("viewer connected",
		logging.String(logging.FieldChannel, channelID),
		logging.String("remote", raw.RemoteAddr().String()),
	)

	// Read pump: inbound frames are ignored, but reading is what surfaces
	// close and error conditions from the peer.
	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			break
		}
	}

	g.hub.Unsubscribe(channelID, conn)
	conn.close()
	g.logger.Info("viewer disconnected",
		logging.String(logging.FieldChannel, channelID),
	)
}

func (g *Gateway) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var msg notify.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid notification payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(msg.ChannelID) == "" {
		http.Error(w, "channel_id is required", http.StatusBadRequest)
		return
	}
	delivered := g.hub.Publish(msg.ChannelID, msg.Job)
	g.logger.Debug("notification relayed",
		logging.String(logging.FieldChannel, msg.ChannelID),
		logging.String(logging.FieldJobID, msg.Job.JobID),
		logging.Int("delivered", delivered),
	)
	w.WriteHeader(http.StatusNoContent)
}

// socketConn serializes writes to a gorilla connection so hub broadcasts and
// subscribe-time snapshots never interleave frames.
type socketConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newSocketConn(conn *websocket.Conn) *socketConn {
	return &socketConn{conn: conn}
}

func (c *socketConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(v); err != nil {
		c.closed = true
		return err
	}
	return nil
}

func (c *socketConn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *socketConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.conn.Close()
		return
	}
	c.closed = true
	deadline := time.Now().Add(writeTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.conn.Close()
}
