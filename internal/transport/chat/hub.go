package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/confhub/confbot/internal/domain"
)

// ErrBufferFull is reported when a connection's send buffer is saturated.
var ErrBufferFull = errors.New("send buffer full")

// ErrChatOffline is reported when no connection is bound to the chat.
var ErrChatOffline = errors.New("chat has no active connection")

// Connection is one WebSocket client.
type Connection struct {
	ID     string
	ChatID int64
	Conn   *websocket.Conn
	Send   chan []byte
	mu     sync.Mutex
}

// Hub tracks connections and their chat bindings. It is the delivery
// backend for both the dispatcher replies and the notification fan-out.
type Hub struct {
	connections map[string]*Connection
	// chats maps a chat id to the ids of its live connections.
	chats map[int64]map[string]bool

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		chats:       make(map[int64]map[string]bool),
	}
}

// NewConnection wraps an upgraded socket. The connection is not visible to
// senders until Register.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	log.Printf("connection registered: %s", conn.ID)
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	if _, ok := h.connections[conn.ID]; ok {
		delete(h.connections, conn.ID)
		if conn.ChatID != 0 && h.chats[conn.ChatID] != nil {
			delete(h.chats[conn.ChatID], conn.ID)
			if len(h.chats[conn.ChatID]) == 0 {
				delete(h.chats, conn.ChatID)
			}
		}
		close(conn.Send)
	}
	h.mu.Unlock()
	log.Printf("connection unregistered: %s", conn.ID)
}

// BindChat attaches a connection to a chat after the hello handshake.
func (h *Hub) BindChat(conn *Connection, chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.ChatID != 0 && h.chats[conn.ChatID] != nil {
		delete(h.chats[conn.ChatID], conn.ID)
		if len(h.chats[conn.ChatID]) == 0 {
			delete(h.chats, conn.ChatID)
		}
	}

	conn.ChatID = chatID
	if h.chats[chatID] == nil {
		h.chats[chatID] = make(map[string]bool)
	}
	h.chats[chatID][conn.ID] = true
}

// Send delivers a fresh message to every connection of a chat.
func (h *Hub) Send(_ context.Context, chatID int64, text string, keyboard domain.Keyboard) error {
	return h.push(chatID, OutboundFrame{
		BaseFrame: BaseFrame{Type: TypeSend, Ts: time.Now().UnixMilli()},
		ChatID:    chatID,
		Text:      text,
		Keyboard:  keyboard,
	})
}

// Edit replaces a previously sent message in place.
func (h *Hub) Edit(_ context.Context, chatID int64, messageID, text string, keyboard domain.Keyboard) error {
	return h.push(chatID, OutboundFrame{
		BaseFrame: BaseFrame{Type: TypeEdit, Ts: time.Now().UnixMilli()},
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		Keyboard:  keyboard,
	})
}

func (h *Hub) push(chatID int64, frame OutboundFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	connIDs, ok := h.chats[chatID]
	if !ok || len(connIDs) == 0 {
		return fmt.Errorf("chat %d: %w", chatID, ErrChatOffline)
	}
	for connID := range connIDs {
		conn, exists := h.connections[connID]
		if !exists {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			log.Printf("WARN: connection %s buffer full, dropping frame", connID)
		}
	}
	return nil
}

// SendJSONToConnection delivers directly, bypassing the chat binding. Used
// for handshake acks and protocol errors.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// WriteMessage writes to the socket with the connection's write lock held.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Connection) Close() error {
	return c.Conn.Close()
}
