package chat

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// ServerConfig tunes the socket lifecycle.
type ServerConfig struct {
	MaxMessageSize int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// Server owns the WebSocket endpoint: it upgrades connections, runs their
// pumps and feeds decoded frames into the dispatcher.
type Server struct {
	cfg        ServerConfig
	hub        *Hub
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
}

func NewServer(cfg ServerConfig, h *Hub, d *Dispatcher) *Server {
	return &Server{
		cfg:        cfg,
		hub:        h,
		dispatcher: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: websocket upgrade failed: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket read failed: %v", err)
			}
			break
		}
		s.handleFrame(conn, message)
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: websocket write failed: %v", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFrame(conn *Connection, data []byte) {
	var base BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, ErrorCodeInvalidFrame, "invalid JSON frame")
		return
	}

	switch base.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeMessage:
		s.handleMessage(conn, data)
	case TypeCallback:
		s.handleCallback(conn, data)
	default:
		s.sendError(conn, ErrorCodeInvalidFrame, "unknown frame type: "+base.Type)
	}
}

func (s *Server) handleHello(conn *Connection, data []byte) {
	var frame HelloFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.ChatID == 0 {
		s.sendError(conn, ErrorCodeInvalidFrame, "invalid hello frame")
		return
	}

	s.hub.BindChat(conn, frame.ChatID)

	ack := HelloAckFrame{
		BaseFrame: BaseFrame{Type: TypeHelloAck, Ts: time.Now().UnixMilli()},
		ChatID:    frame.ChatID,
	}
	s.hub.SendJSONToConnection(conn, ack)
}

func (s *Server) handleMessage(conn *Connection, data []byte) {
	var frame MessageFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError(conn, ErrorCodeInvalidFrame, "invalid message frame")
		return
	}
	if conn.ChatID == 0 {
		s.sendError(conn, ErrorCodeHelloFirst, "must send hello first")
		return
	}

	in := Inbound{
		ChatID:   conn.ChatID,
		Username: frame.Username,
		Text:     frame.Text,
	}
	// Dispatch off the read loop so a slow handler cannot stall the socket.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.dispatcher.Dispatch(ctx, in)
	}()
}

func (s *Server) handleCallback(conn *Connection, data []byte) {
	var frame CallbackFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.sendError(conn, ErrorCodeInvalidFrame, "invalid callback frame")
		return
	}
	if conn.ChatID == 0 {
		s.sendError(conn, ErrorCodeHelloFirst, "must send hello first")
		return
	}

	in := Inbound{
		ChatID:    conn.ChatID,
		Username:  frame.Username,
		Payload:   frame.Payload,
		MessageID: frame.MessageID,
		Callback:  true,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.dispatcher.Dispatch(ctx, in)
	}()
}

func (s *Server) sendError(conn *Connection, code, message string) {
	frame := ErrorFrame{
		BaseFrame: BaseFrame{Type: TypeError, Ts: time.Now().UnixMilli()},
		Code:      code,
		Message:   message,
	}
	s.hub.SendJSONToConnection(conn, frame)
}
