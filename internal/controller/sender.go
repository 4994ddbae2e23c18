package controller

import (
	"sync"

	"github.com/gorilla/websocket"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsWriter serializes writes to one connection: the bridge player and the
// session callbacks all send from their own goroutines.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSWriter(conn *websocket.Conn) *wsWriter {
	return &wsWriter{conn: conn}
}

func (w *wsWriter) Send(event string, payload any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn.WriteJSON(&Output{Type: event, Payload: payload})
}
