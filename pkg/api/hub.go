package api

import (
	"sync"
	"time"

	"github.com/dixieflatline76/Jitter/pkg/augment"
	"github.com/dixieflatline76/Jitter/util/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	progressInterval = 250 * time.Millisecond
	writeWait        = 5 * time.Second
)

// ProgressMessage is pushed to websocket clients while a video is encoding.
type ProgressMessage struct {
	Type   string `json:"type"` // "progress"
	Job    string `json:"job"`
	Frames int    `json:"frames"`
	Total  int    `json:"total,omitempty"`
}

// DoneMessage is pushed once when a job finishes, successfully or not.
type DoneMessage struct {
	Type    string `json:"type"` // "done"
	Job     string `json:"job"`
	Status  string `json:"status"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Hub fans job progress out to connected websocket clients.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex

	throttles   map[string]*rate.Sometimes
	throttlesMu sync.Mutex
	interval    time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		throttles: make(map[string]*rate.Sometimes),
		interval:  progressInterval,
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.clientsMu.Lock()
	h.clients[conn] = true
	h.clientsMu.Unlock()
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.clientsMu.Lock()
	delete(h.clients, conn)
	h.clientsMu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// Progress is an augment.ProgressFunc. The first frame, the closing call
// (frames >= total > 0) and at most one frame per interval in between are
// broadcast.
func (h *Hub) Progress(jobID string, frames, total int) {
	msg := ProgressMessage{Type: "progress", Job: jobID, Frames: frames, Total: total}
	if total > 0 && frames >= total {
		h.Broadcast(msg)
		return
	}
	h.throttle(jobID).Do(func() { h.Broadcast(msg) })
}

func (h *Hub) throttle(jobID string) *rate.Sometimes {
	h.throttlesMu.Lock()
	defer h.throttlesMu.Unlock()
	s, ok := h.throttles[jobID]
	if !ok {
		s = &rate.Sometimes{Interval: h.interval}
		h.throttles[jobID] = s
	}
	return s
}

// Finish announces the outcome of a job and drops its throttle state.
func (h *Hub) Finish(res augment.Result, url string) {
	h.throttlesMu.Lock()
	delete(h.throttles, res.JobID)
	h.throttlesMu.Unlock()

	h.Broadcast(DoneMessage{
		Type:    "done",
		Job:     res.JobID,
		Status:  res.Status.String(),
		Message: res.Message(),
		URL:     url,
	})
}

// Broadcast sends msg as JSON to all connected clients. Clients that fail
// to receive it are dropped.
func (h *Hub) Broadcast(msg any) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for client := range h.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteJSON(msg); err != nil {
			log.Printf("Failed to broadcast to client: %v", err)
			client.Close()
			delete(h.clients, client)
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		_ = client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		client.Close()
		delete(h.clients, client)
	}
}
