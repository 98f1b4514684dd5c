package notification

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mediaforge/mediaforge-api/internal/pkg/metrics"
)

// Redis channel shared by all API instances
const userEventsChannel = "ws:user_events"

type userEventMessage struct {
	EventType        string          `json:"event_type"`
	UserID           string          `json:"user_id"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection represents a WebSocket connection
type Connection struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans notification events out to local sockets and, through Redis, to other instances.
type Hub struct {
	connections map[string]map[*Connection]bool
	mu          sync.RWMutex

	redis  *redis.Client
	pubsub *redis.PubSub

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
	publishFn  func(ctx context.Context, channel string, payload []byte) error
}

// NewHub creates a hub. redisClient may be nil for single-instance deployments.
func NewHub(redisClient *redis.Client) *Hub {
	return NewHubWithInstanceID(redisClient, uuid.NewString())
}

// NewHubWithInstanceID creates a hub with an explicit instance identifier.
func NewHubWithInstanceID(redisClient *redis.Client, instanceID string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[string]map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  instanceID,
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, userEventsChannel)
		h.publishFn = func(ctx context.Context, channel string, payload []byte) error {
			return redisClient.Publish(ctx, channel, payload).Err()
		}
	}
	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()
			metrics.WSConnections.Inc()
			log.Debug().Str("user_id", conn.UserID).Msg("User connected to WebSocket")

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.connections[conn.UserID]; ok {
				if _, exists := conns[conn]; exists {
					delete(conns, conn)
					close(conn.Send)
					metrics.WSConnections.Dec()
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)
				}
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID).Msg("User disconnected from WebSocket")
		}
	}
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleUserEventPayload(msg.Payload)
		}
	}
}

func (h *Hub) handleUserEventPayload(payload string) {
	var event userEventMessage
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return
	}
	// already delivered locally
	if event.SenderInstanceID == h.instanceID || event.UserID == "" {
		return
	}
	h.sendLocal(event.UserID, event.Payload)
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// SendToUserJSON sends payload to every socket of userID on every instance.
func (h *Hub) SendToUserJSON(userID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	h.sendLocal(userID, data)
	if h.publishFn == nil {
		return nil
	}

	msg, err := json.Marshal(userEventMessage{
		EventType:        EventNotificationNew,
		UserID:           userID,
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return err
	}
	return h.publishFn(h.ctx, userEventsChannel, msg)
}

func (h *Hub) sendLocal(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections[userID] {
		select {
		case conn.Send <- data:
		default:
			log.Warn().Str("user_id", userID).Msg("WebSocket send buffer full")
		}
	}
}

// ConnectionCount returns number of local connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
