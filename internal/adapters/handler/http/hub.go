package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"docpipe.ingest/internal/core/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for dev
	},
}

// Hub tracks the open job status streams.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	streamConnections.Set(float64(n))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	streamConnections.Set(float64(n))
}

// Count is the number of open streams.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll sends a going-away close frame to every stream and drops it.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.cancel()
		c.conn.Close()
	}
}

// Client is a middleman between the websocket connection and the job's
// event subscription.
type Client struct {
	hub   *Hub
	jobID string

	// The websocket connection.
	conn *websocket.Conn

	// Frames of the job, closed when the subscription ends.
	frames <-chan []byte
	cancel context.CancelFunc
}

// readPump discards inbound messages and detects the peer going away.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.cancel()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Job stream read failed", "job_id", c.jobID, "error", err)
			}
			return
		}
	}
}

// writePump pumps frames from the subscription to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.frames:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The subscription ended.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			streamFrames.Inc()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveJob upgrades the request and streams the job's frames until either
// side goes away.
func (h *Hub) serveJob(ctx context.Context, w http.ResponseWriter, r *http.Request, jobID string, subscribe func(context.Context) (<-chan []byte, error)) {
	subCtx, cancel := context.WithCancel(ctx)
	frames, err := subscribe(subCtx)
	if err != nil {
		cancel()
		logger.Error("Failed to subscribe to job events", "job_id", jobID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "job events unavailable")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		logger.Warn("Job stream upgrade failed", "job_id", jobID, "error", err)
		return
	}
	client := &Client{hub: h, jobID: jobID, conn: conn, frames: frames, cancel: cancel}
	h.register(client)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
}
