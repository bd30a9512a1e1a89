package engine

import "time"

// Message type constants mirror gorilla/websocket's frame type values
// so transport's real sockets need no translation layer.
const (
	TextMessage = 1
	PingMessage = 9
)

// Socket is the minimal surface the engine needs from a WebSocket
// connection. Its shape matches *websocket.Conn exactly, so the
// transport package can pass one straight through; tests supply a
// fake implementation instead of a real network socket.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}
