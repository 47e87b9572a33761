// Package workflowws pushes committed workflow events to the connected
// participants over websockets.
package workflowws

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
	"github.com/saeid-a/CoachMarketBack/internal/events"
)

const (
	messageTypeEvent = "event"
	messageTypeError = "error"
	messageTypePing  = "ping"
	messageTypePong  = "pong"

	clientBuffer = 32
)

type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan events.Event
	done       chan struct{}
	logger     zerolog.Logger
}

// Client.send is never closed; the hub signals disconnection through closed
// so that writers racing with a drop cannot panic.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	userID    string
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

type Message struct {
	Type      string        `json:"type"`
	Event     *events.Event `json:"event,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp string        `json:"timestamp"`
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.Event, 64),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, clientBuffer),
		closed: make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Run owns the client registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for userID, set := range h.clients {
				for client := range set {
					client.close()
				}
				delete(h.clients, userID)
			}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues the event for delivery to its recipients. Users without an
// open connection simply miss it, as does everyone once the hub has stopped.
func (h *Hub) Publish(ctx context.Context, event events.Event) error {
	if len(event.Recipients) == 0 {
		return nil
	}
	select {
	case h.broadcast <- event:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, exists := set[client]; exists {
		delete(set, client)
		client.close()
	}
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) deliver(event events.Event) {
	encoded, err := json.Marshal(Message{
		Type:      messageTypeEvent,
		Event:     &event,
		Timestamp: formatTimestamp(event.OccurredAt),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", event.Type).Msg("encode event")
		return
	}

	for _, recipient := range event.Recipients {
		h.sendToUser(strconv.FormatInt(recipient, 10), encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			// slow consumer
			delete(set, client)
			client.close()
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

// ReadPump keeps the connection alive. Clients never write workflow state over
// the socket; the only accepted frame is a ping.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != messageTypePing {
			writeError(c, "unsupported message type")
			continue
		}
		writeMessage(c, Message{Type: messageTypePong, Timestamp: formatTimestamp(time.Now())})
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func writeError(client *Client, message string) {
	writeMessage(client, Message{
		Type:      messageTypeError,
		Error:     message,
		Timestamp: formatTimestamp(time.Now()),
	})
}

func writeMessage(client *Client, message Message) {
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case <-client.closed:
		return
	default:
	}
	select {
	case <-client.closed:
	case client.send <- payload:
	default:
		client.hub.Unregister(client)
	}
}
