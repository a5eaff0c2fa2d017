package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/service"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
)

const (
	maxMessagesPerSecond = 10
	sendBufferSize       = 64

	EventUnread = "unread"
	requestSync = "sync"
)

// UnreadCounter answers the badge count pushed on connect and on sync
type UnreadCounter interface {
	UnreadCount(viewer service.Viewer) (int64, error)
}

// ClientMessage is a request sent by the browser
type ClientMessage struct {
	Type string `json:"type"` // sync
}

// Event is pushed to every session of a user
type Event struct {
	Type   string                      `json:"type"`
	Unread int64                       `json:"unread"`
	Thread *service.ThreadNotification `json:"thread,omitempty"`
}

// Client is one browser session
type Client struct {
	Hub     *Hub
	Conn    *Conn
	UserID  uint
	IsStaff bool
	Send    chan []byte

	messageCount  int
	lastResetTime time.Time
	rateMu        sync.Mutex
}

func NewClient(hub *Hub, conn *Conn, userID uint, isStaff bool) *Client {
	return &Client{
		Hub:           hub,
		Conn:          conn,
		UserID:        userID,
		IsStaff:       isStaff,
		Send:          make(chan []byte, sendBufferSize),
		lastResetTime: time.Now(),
	}
}

func (c *Client) viewer() service.Viewer {
	return service.Viewer{UserID: c.UserID, IsStaff: c.IsStaff}
}

type userMessage struct {
	UserID  uint
	Message []byte
}

// Hub keeps every open session per user and pushes events to them
type Hub struct {
	// a user may be connected from several devices
	clients map[uint][]*Client

	register   chan *Client
	unregister chan *Client
	sync       chan *Client
	push       chan *userMessage
	done       chan struct{}

	counter UnreadCounter
	mu      sync.RWMutex
}

func NewHub(counter UnreadCounter) *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		sync:       make(chan *Client, 256),
		push:       make(chan *userMessage, 1024),
		done:       make(chan struct{}),
		counter:    counter,
	}
}

// Run serves the hub until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			sessions := len(h.clients[client.UserID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": sessions,
			})
			h.sendUnread(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case client := <-h.sync:
			// Send is closed once a client is removed
			if h.registered(client) {
				h.sendUnread(client)
			}

		case msg := <-h.push:
			h.mu.RLock()
			clients := append([]*Client(nil), h.clients[msg.UserID]...)
			h.mu.RUnlock()
			for _, client := range clients {
				select {
				case client.Send <- msg.Message:
				default:
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"user_id": msg.UserID,
					})
					h.removeClient(client)
				}
			}

		case <-h.done:
			h.mu.Lock()
			for userID, clients := range h.clients {
				for _, client := range clients {
					close(client.Send)
				}
				delete(h.clients, userID)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every session and ends Run
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientList, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	remaining := make([]*Client, 0, len(clientList))
	found := false
	for _, c := range clientList {
		if c == client {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	if !found {
		return
	}
	if len(remaining) == 0 {
		delete(h.clients, client.UserID)
	} else {
		h.clients[client.UserID] = remaining
	}
	close(client.Send)

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"user_id":            client.UserID,
		"remaining_sessions": len(remaining),
	})
}

func (h *Hub) registered(client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients[client.UserID] {
		if c == client {
			return true
		}
	}
	return false
}

// sendUnread queues the current badge count for one session
func (h *Hub) sendUnread(client *Client) {
	if h.counter == nil {
		return
	}
	count, err := h.counter.UnreadCount(client.viewer())
	if err != nil {
		logger.Warn("Failed to count unread messages", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}
	data, err := json.Marshal(Event{Type: EventUnread, Unread: count})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// SendToUser pushes an event to every session of a user. Delivery is best effort.
func (h *Hub) SendToUser(userID uint, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", err, nil)
		return err
	}

	select {
	case h.push <- &userMessage{UserID: userID, Message: data}:
	default:
		logger.Warn("Push channel full, event dropped", map[string]interface{}{
			"user_id": userID,
		})
	}
	return nil
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// IsUserOnline reports whether the user has an open session
func (h *Hub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// HandleClientMessage answers a sync request with a fresh unread count
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.rateMu.Lock()
	now := time.Now()
	if now.Sub(client.lastResetTime) >= time.Second {
		client.messageCount = 0
		client.lastResetTime = now
	}
	client.messageCount++
	count := client.messageCount
	client.rateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type == requestSync {
		select {
		case h.sync <- client:
		default:
		}
	}
}
