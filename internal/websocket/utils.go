package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// pongWait bounds silence from the browser; pings keep idle sockets alive.
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// Largest client action is a signal or select; anything bigger is abuse.
	maxMessageSize = 4096
)

// PrepareReader applies the read limit and keepalive deadline to conn.
// Each pong pushes the deadline forward.
func PrepareReader(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// ReadJSON decodes the next client message into v. Any message counts as
// liveness.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	if err := conn.ReadJSON(v); err != nil {
		return err
	}
	return conn.SetReadDeadline(time.Now().Add(pongWait))
}

// IsUnexpectedClose reports whether a read error is worth logging.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseNormalClosure,
		websocket.CloseNoStatusReceived,
	)
}
