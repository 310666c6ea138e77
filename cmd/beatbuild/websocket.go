package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the bridge listens on loopback by default
	},
}

const (
	hubQueueSize = 256
	writeTimeout = 5 * time.Second
)

// Hub fans session events out to every connected websocket client.
// Publish never blocks; events are dropped when the queue is full.
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	writeMu sync.Mutex // gorilla/websocket isn't concurrent-write safe
	events  chan interface{}
	dropped atomic.Int64
	log     *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		events:  make(chan interface{}, hubQueueSize),
		log:     log,
	}
}

// Publish queues an event for broadcast
func (h *Hub) Publish(ev interface{}) {
	select {
	case h.events <- ev:
	default:
		if h.dropped.Add(1)%100 == 1 {
			h.log.Warnf("[WEBSOCKET] Event queue full, dropped %d events so far", h.dropped.Load())
		}
	}
}

// Dropped returns how many events were discarded because the queue was full
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Run writes queued events to clients until ctx is cancelled, then drains what is left
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.drain()
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			h.mu.Unlock()
			return ctx.Err()
		case ev := <-h.events:
			h.broadcast(ev)
		}
	}
}

func (h *Hub) drain() {
	for {
		select {
		case ev := <-h.events:
			h.broadcast(ev)
		default:
			return
		}
	}
}

func (h *Hub) broadcast(ev interface{}) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Errorf("[WEBSOCKET] Marshal error: %v", err)
		return
	}

	var failed []*websocket.Conn
	h.mu.RLock()
	h.writeMu.Lock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debugf("[WEBSOCKET] Broadcast write error: %v", err)
			failed = append(failed, conn)
		}
	}
	h.writeMu.Unlock()
	h.mu.RUnlock()

	for _, conn := range failed {
		h.RemoveClient(conn)
		conn.Close()
	}
}

func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Infof("[WEBSOCKET] Client connected (total: %d)", n)
}

func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Infof("[WEBSOCKET] Client disconnected (total: %d)", n)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// send writes one message to a single client
func (h *Hub) send(conn *websocket.Conn, v interface{}) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// HubSink forwards input commands to the game host through the hub
type HubSink struct {
	hub *Hub
}

func (s HubSink) MoveTo(pos Vec2) {
	s.hub.Publish(map[string]interface{}{
		"type": "move",
		"x":    pos.X,
		"y":    pos.Y,
	})
}

func (s HubSink) Press(button MouseButton, down bool) {
	s.hub.Publish(map[string]interface{}{
		"type":   "press",
		"button": button.String(),
		"down":   down,
	})
}

func (s HubSink) LockUserCursor(locked bool) {
	s.hub.Publish(map[string]interface{}{
		"type":   "cursor-lock",
		"locked": locked,
	})
}

// hostMessage is a control message sent by the game host
type hostMessage struct {
	Type       string             `json:"type"`
	Time       float64            `json:"time,omitempty"`
	Data       json.RawMessage    `json:"data,omitempty"`
	Difficulty *BeatmapDifficulty `json:"difficulty,omitempty"`
	Rank       string             `json:"rank,omitempty"`
	Accuracy   float64            `json:"accuracy,omitempty"`
	Mods       []string           `json:"mods,omitempty"`
}

// newServeMux exposes the bridge. hostClock may be nil when the wall clock drives the session.
func newServeMux(sess *Session, hub *Hub, hostClock *HostClock) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, sess, hub, hostClock)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sess.Status()); err != nil {
			hub.log.Errorf("[HTTP] Failed to encode status: %v", err)
		}
	})
	return mux
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, sess *Session, hub *Hub, hostClock *HostClock) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Errorf("[WEBSOCKET] Upgrade error: %v", err)
		return
	}
	defer conn.Close()

	hub.AddClient(conn)
	defer hub.RemoveClient(conn)

	if err := hub.send(conn, statusEvent(sess.Status())); err != nil {
		hub.log.Debugf("[WEBSOCKET] Failed to send initial status: %v", err)
		return
	}

	// Message protocol (JSON text frames):
	//   {"type":"clock","time":<ms>}           gameplay time from the host
	//   {"type":"fail"}                        player failed, end the session
	//   {"type":"difficulty","difficulty":{}}  returns the adjusted difficulty
	//   {"type":"rank","rank":"S"}             returns the adjusted rank
	//   {"type":"mods","mods":[...]}           checks compatibility with other enabled mods
	//   {"type":"ping"}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.log.Debugf("[WEBSOCKET] Read error: %v", err)
			}
			return
		}

		var msg hostMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			hub.log.Warnf("[WEBSOCKET] Invalid JSON message: %v", err)
			continue
		}

		var reply interface{}
		switch msg.Type {
		case "clock":
			if hostClock != nil {
				hostClock.Set(msg.Time)
			}
		case "fail":
			sess.PerformFail()
		case "difficulty":
			d := BeatmapDifficulty{}
			if msg.Difficulty != nil {
				d = *msg.Difficulty
			}
			sess.ApplyToDifficulty(&d)
			reply = map[string]interface{}{"type": "difficulty", "difficulty": d}
		case "rank":
			rank, err := ParseScoreRank(msg.Rank)
			if err != nil {
				reply = map[string]interface{}{"type": "error", "error": err.Error()}
				break
			}
			reply = map[string]interface{}{"type": "rank", "rank": sess.AdjustRank(rank, msg.Accuracy).String()}
		case "mods":
			resp := map[string]interface{}{"type": "mods", "compatible": true}
			if err := sess.Mod.CheckCompatible(msg.Mods); err != nil {
				resp["compatible"] = false
				resp["error"] = err.Error()
			}
			reply = resp
		case "ping":
			resp := map[string]interface{}{"type": "pong"}
			if msg.Data != nil {
				resp["data"] = msg.Data
			}
			reply = resp
		default:
			hub.log.Warnf("[WEBSOCKET] Unknown message type: %s", msg.Type)
		}

		if reply != nil {
			if err := hub.send(conn, reply); err != nil {
				hub.log.Debugf("[WEBSOCKET] Failed to reply: %v", err)
				return
			}
		}
	}
}
