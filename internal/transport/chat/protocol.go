// Package chat is the WebSocket boundary of the bot: the frame protocol,
// the connection hub and the dispatcher that routes inbound frames to the
// service layer.
package chat

import (
	"github.com/confhub/confbot/internal/domain"
)

// Frame types from client to server.
const (
	TypeHello    = "hello"
	TypeMessage  = "message"
	TypeCallback = "callback"
)

// Frame types from server to client.
const (
	TypeHelloAck = "hello_ack"
	TypeSend     = "send"
	TypeEdit     = "edit"
	TypeError    = "error"
)

// BaseFrame carries the fields common to every frame.
type BaseFrame struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// HelloFrame binds a connection to a chat.
type HelloFrame struct {
	BaseFrame
	ChatID   int64  `json:"chat_id"`
	Username string `json:"username,omitempty"`
}

// HelloAckFrame confirms the binding.
type HelloAckFrame struct {
	BaseFrame
	ChatID int64 `json:"chat_id"`
}

// MessageFrame is an inbound text message.
type MessageFrame struct {
	BaseFrame
	ChatID   int64  `json:"chat_id"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}

// CallbackFrame is an inbound button press. MessageID identifies the
// message the button was attached to so edits can replace it.
type CallbackFrame struct {
	BaseFrame
	ChatID    int64  `json:"chat_id"`
	Username  string `json:"username,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Payload   string `json:"payload"`
}

// OutboundFrame is a message from the bot: a fresh send or an in-place
// edit, with an optional keyboard attached.
type OutboundFrame struct {
	BaseFrame
	ChatID    int64           `json:"chat_id"`
	MessageID string          `json:"message_id,omitempty"`
	Text      string          `json:"text"`
	Keyboard  domain.Keyboard `json:"keyboard,omitempty"`
}

// ErrorFrame reports a protocol-level failure to the client.
type ErrorFrame struct {
	BaseFrame
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrorCodeInvalidFrame = "invalid_frame"
	ErrorCodeHelloFirst   = "hello_required"
)
