package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/bytedungeon/dungeon-server-go/internal/game"
	"github.com/bytedungeon/dungeon-server-go/internal/game/grid"
	"github.com/bytedungeon/dungeon-server-go/internal/game/rules"
	"github.com/bytedungeon/dungeon-server-go/internal/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Message types exchanged with websocket clients.
const (
	MessageSnapshot       = "snapshot"
	MessageEvent          = "event"
	MessageLog            = "log"
	MessageSubmitRequests = "submit_requests"
	MessageError          = "error"
)

// Message is the envelope of every websocket frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Caster    string          `json:"caster,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Client is one websocket connection watching a session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
	role      string
}

type outbound struct {
	sessionID string
	// client, when set, restricts delivery to that client.
	client  *Client
	payload []byte
}

// Hub fans session events out to the websocket clients watching each
// session and relays what clients send back.
type Hub struct {
	manager  *session.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}
	handle     int
}

// NewHub creates a hub for the manager's sessions. An empty allowedOrigins
// accepts any origin.
func NewHub(manager *session.Manager, allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		manager:    manager,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 1024),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}
	h.handle = manager.Events().Subscribe(h.onEvent)
	return h
}

// onEvent runs on the publishing goroutine while the session lock is held,
// so it only enqueues.
func (h *Hub) onEvent(evt rules.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", string(evt.Type)), zap.Error(err))
		return
	}
	payload, err := json.Marshal(Message{Type: MessageEvent, SessionID: evt.SessionID, Data: data})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- outbound{sessionID: evt.SessionID, payload: payload}:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event",
			zap.String("session_id", evt.SessionID),
			zap.String("type", string(evt.Type)),
		)
	}
}

// Run delivers messages until ctx is cancelled, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.manager.Events().Unsubscribe(h.handle)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			websocketClients.Inc()
			h.logger.Debug("websocket client registered",
				zap.String("session_id", client.sessionID),
				zap.String("role", client.role),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("websocket client unregistered", zap.String("session_id", client.sessionID))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.sessionID != msg.sessionID {
					continue
				}
				if msg.client != nil && msg.client != client {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					h.logger.Warn("websocket client too slow, disconnecting", zap.String("session_id", client.sessionID))
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	websocketClients.Dec()
}

// enqueue hands a message to Run without blocking once Run has stopped.
func (h *Hub) enqueue(msg outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// ServeWS upgrades /ws?session=<id> and streams that session to the client,
// starting with a snapshot of its current document.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	entry, err := h.manager.Lookup(id)
	if err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	var doc []byte
	err = entry.Do(func(g *game.Session) error {
		var err error
		doc, err = g.Export()
		return err
	})
	if err != nil {
		h.logger.Error("failed to export session for websocket client", zap.String("session_id", id), zap.Error(err))
		http.Error(w, "failed to export session", http.StatusInternalServerError)
		return
	}
	snapshot, err := json.Marshal(Message{Type: MessageSnapshot, SessionID: id, Data: doc})
	if err != nil {
		http.Error(w, "failed to encode snapshot", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: id,
		role:      r.URL.Query().Get("role"),
	}
	client.send <- snapshot

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", zap.String("session_id", c.sessionID), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError("malformed message: " + err.Error())
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Type {
	case MessageLog:
		payload, err := json.Marshal(Message{Type: MessageLog, SessionID: c.sessionID, Data: msg.Data})
		if err != nil {
			return
		}
		c.hub.enqueue(outbound{sessionID: c.sessionID, payload: payload})

	case MessageSubmitRequests:
		if err := c.submitRequests(msg); err != nil {
			c.replyError(err.Error())
		}

	default:
		c.replyError("unknown message type " + msg.Type)
	}
}

// submitRequests queues a client's batch under its caster. The resulting
// events reach every client through the bus.
func (c *Client) submitRequests(msg Message) error {
	caster, err := grid.ParseMarker(msg.Caster)
	if err != nil {
		return err
	}
	var batch []rules.Request
	if err := json.Unmarshal(msg.Data, &batch); err != nil {
		return err
	}
	entry, err := c.hub.manager.Lookup(c.sessionID)
	if err != nil {
		return err
	}
	return entry.Do(func(g *game.Session) error {
		return g.InsertRequests(caster, batch...)
	})
}

func (c *Client) replyError(text string) {
	data, _ := json.Marshal(text)
	payload, err := json.Marshal(Message{Type: MessageError, SessionID: c.sessionID, Data: data})
	if err != nil {
		return
	}
	c.hub.enqueue(outbound{sessionID: c.sessionID, client: c, payload: payload})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
