package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/smart-grievance/grievance-api/lifecycle"
)

const (
	eventWriteWait = 10 * time.Second
	eventPingEvery = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// auth happens in the middleware chain, not at the upgrade
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Events streams lifecycle events to admin dashboards over a websocket
type Events struct {
	Broadcaster *lifecycle.Broadcaster
}

// StreamHandler upgrades the connection and pumps events until the client
// disconnects
func (h Events) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade event stream", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := h.Broadcaster.Subscribe()
	defer cancel()

	// discard client frames but notice the close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingEvery)
	defer ping.Stop()

	for {
		select {
		case ev := <-events:
			conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
