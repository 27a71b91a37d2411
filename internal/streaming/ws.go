package streaming

import (
	"github.com/gofiber/websocket/v2"
)

// WriteWS writes one event as a JSON frame on a WebSocket connection
func WriteWS(conn *websocket.Conn, ev Event) error {
	return conn.WriteJSON(ev)
}
