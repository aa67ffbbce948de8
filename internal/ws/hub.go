// Package ws pushes live queue events to connected dashboards over
// websockets. Broadcasts are scoped to one shop.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MessageType represents the type of a hub payload.
type MessageType string

const (
	MessageQueueCreated       MessageType = "QueueCreated"
	MessageQueueStatusChanged MessageType = "QueueStatusChanged"
	MessageQueuePrioritized   MessageType = "QueuePrioritized"
	MessageQueueAssigned      MessageType = "QueueAssigned"
)

// Event is the envelope every broadcast payload is wrapped in.
type Event struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
	At   time.Time   `json:"at"`
}

// BroadcastMessage packages a payload for a shop-scoped broadcast.
type BroadcastMessage struct {
	ShopID  string
	Payload []byte
}

// Hub manages active clients and shop-scoped broadcasts.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan BroadcastMessage
}

// NewHub builds a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan BroadcastMessage),
	}
}

// Run starts the hub loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				if client.ShopID() != message.ShopID {
					continue
				}
				select {
				case client.Send <- message.Payload:
				default:
					delete(h.clients, client)
					close(client.Send)
				}
			}
		}
	}
}

// Broadcast sends a raw payload to all clients of a shop.
func (h *Hub) Broadcast(shopID string, payload []byte) {
	h.broadcast <- BroadcastMessage{ShopID: shopID, Payload: payload}
}

// BroadcastEvent marshals a typed event and sends it to all clients of a
// shop. Marshal failures are logged and the event is dropped.
func (h *Hub) BroadcastEvent(shopID string, messageType MessageType, data any) {
	payload, err := json.Marshal(Event{Type: messageType, Data: data, At: time.Now().UTC()})
	if err != nil {
		log.Warn().Err(err).Str("shop_id", shopID).Str("type", string(messageType)).Msg("dropping unmarshalable ws event")
		return
	}
	h.Broadcast(shopID, payload)
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Client represents a websocket connection.
type Client struct {
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte
	mu     sync.RWMutex
	shopID string
}

// NewClient returns a client ready for registration.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Conn: conn,
		Hub:  hub,
		Send: make(chan []byte, 256),
	}
}

// ShopID returns the shop the client is subscribed to.
func (c *Client) ShopID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shopID
}

// SetShopID updates the shop subscription for the client.
func (c *Client) SetShopID(shopID string) {
	c.mu.Lock()
	c.shopID = shopID
	c.mu.Unlock()
}
