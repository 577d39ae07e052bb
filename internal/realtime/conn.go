package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Upgrader upgrades HTTP requests to websocket connections.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adds a write deadline to every JSON frame.
type wsConn struct {
	*websocket.Conn
}

func (c wsConn) WriteJSON(v any) error {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

// Serve registers conn for userID and blocks until the client disconnects.
// Inbound frames are only used to keep the connection alive.
func (r *Registry) Serve(conn *websocket.Conn, userID string, role Role) {
	session := r.Add(userID, role, wsConn{conn})
	defer r.Remove(session)

	log := r.log.WithField("user_id", userID)
	log.WithField("role", role).Info("realtime client connected")

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("realtime read error")
			}
			log.Info("realtime client disconnected")
			return
		}
	}
}

func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
