package realtime

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// Hub fans room events out to the websocket clients connected to this
// process instance. It pattern-subscribes to every room channel and
// forwards each event to the clients of that room. A hub only ever sees
// its own instance's connections; events for rooms with no local
// subscribers are dropped, which is fine because push is best-effort.
type Hub struct {
	client     *redis.Client
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

type Client struct {
	hub           *Hub
	id            string
	socket        *websocket.Conn
	send          chan []byte
	roomCode      string
	participantID string
}

func NewHub(client *redis.Client) *Hub {
	return &Hub{
		client:     client,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run pumps registrations and published events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.client.PSubscribe(ctx, ChannelFor("*"))
	defer pubsub.Close()
	events := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("client %s registered for room %s (participant %s), total clients: %d",
				client.id, client.roomCode, client.participantID, h.clientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			log.Printf("client %s unregistered from room %s, total clients: %d",
				client.id, client.roomCode, h.clientCount())

		case msg, ok := <-events:
			if !ok {
				return
			}
			h.forward(codeFromChannel(msg.Channel), []byte(msg.Payload))
		}
	}
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) forward(roomCode string, payload []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if !strings.EqualFold(client.roomCode, roomCode) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Slow consumer, drop the connection rather than the hub.
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// RegisterClient attaches an upgraded websocket connection to the hub and
// starts its read/write pumps.
func (h *Hub) RegisterClient(conn *websocket.Conn, roomCode, participantID string) *Client {
	client := &Client{
		hub:           h,
		id:            uuid.NewString(),
		socket:        conn,
		send:          make(chan []byte, 256),
		roomCode:      roomCode,
		participantID: participantID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	// The subscription is one-way; inbound frames are drained only to
	// detect the close.
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error for client %s: %v", c.id, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}
