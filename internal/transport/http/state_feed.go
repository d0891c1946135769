package http

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type feedMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// handleStateFeed streams the session snapshot to a websocket client once
// per second, replacing client-side polling. The reader goroutine only
// watches for the peer closing the connection.
func (h *Handler) handleStateFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(feedMessage{Type: "state", Payload: h.service.State()}); err != nil {
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(feedMessage{Type: "state", Payload: h.service.State()}); err != nil {
				return
			}
		}
	}
}
